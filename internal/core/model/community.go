package model

// Community is one non-overlapping partition cell of a category's
// similarity graph. Communities are recomputed from scratch every round;
// a community value is never mutated once built.
type Community struct {
	ID            string           `json:"id"`
	Category      string           `json:"category"`
	Round         int              `json:"round"`
	Members       []string         `json:"members"` // sorted entry ids
	Edges         []SimilarityEdge `json:"edges"`   // induced intra-community edges
	AvgSimilarity float64          `json:"avg_similarity"`
	Density       float64          `json:"density"`
	Priority      float64          `json:"priority"`
	FromOversized bool             `json:"from_oversized,omitempty"`
}

// Size returns the member count.
func (c *Community) Size() int {
	return len(c.Members)
}

// Contains reports membership of an entry id.
func (c *Community) Contains(id string) bool {
	for _, m := range c.Members {
		if m == id {
			return true
		}
	}
	return false
}
