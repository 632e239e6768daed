package model

// SimilarityEdge is an undirected weighted edge between two entries of the
// same category. A and B are ordered so that A < B lexicographically,
// which gives every pair a single canonical representation.
type SimilarityEdge struct {
	A      string  `json:"a"`
	B      string  `json:"b"`
	Weight float64 `json:"weight"`
}

// NewSimilarityEdge canonicalizes the pair ordering.
func NewSimilarityEdge(a, b string, weight float64) SimilarityEdge {
	if b < a {
		a, b = b, a
	}
	return SimilarityEdge{A: a, B: b, Weight: weight}
}
