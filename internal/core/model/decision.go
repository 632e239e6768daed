package model

import "time"

// DecisionKind is the tagged-union discriminator of an agent decision.
type DecisionKind string

const (
	DecisionMergeAll     DecisionKind = "merge_all"
	DecisionMergeSubset  DecisionKind = "merge_subset"
	DecisionKeepSeparate DecisionKind = "keep_separate"
	DecisionManualReview DecisionKind = "manual_review"
)

// ValidDecisionKind reports whether s is one of the four accepted kinds.
// Anything else maps to manual_review at the call site, never to a merge.
func ValidDecisionKind(s string) bool {
	switch DecisionKind(s) {
	case DecisionMergeAll, DecisionMergeSubset, DecisionKeepSeparate, DecisionManualReview:
		return true
	}
	return false
}

// MergePair designates one directed merge: Source is absorbed into Dest.
type MergePair struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
}

// Decision is the recorded outcome of processing one community (or one
// auto-dedup pair) in one round. Decisions are append-only; one decision
// never overwrites another.
type Decision struct {
	ID          string       `json:"id"`
	CommunityID string       `json:"community_id,omitempty"`
	Category    string       `json:"category"`
	Round       int          `json:"round"`
	Kind        DecisionKind `json:"kind"`
	Merges      []MergePair  `json:"merges,omitempty"`
	Rationale   string       `json:"rationale,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
