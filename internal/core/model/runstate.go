package model

import "time"

// RoundDelta captures how much one round moved the corpus.
type RoundDelta struct {
	Round            int     `json:"round"`
	PendingBefore    int     `json:"pending_before"`
	PendingAfter     int     `json:"pending_after"`
	CommunitiesSeen  int     `json:"communities_seen"`
	Merges           int     `json:"merges"`
	ManualReview     int     `json:"manual_review"`
	KeepSeparate     int     `json:"keep_separate"`
	Degraded         int     `json:"degraded"`
	PendingImprove   float64 `json:"pending_improve"`   // relative, [0,1]
	CommunityImprove float64 `json:"community_improve"` // relative, [0,1]
}

// RunState is the checkpointed state of one curation run. It is treated as
// an immutable-per-round snapshot: each round consumes one value, returns
// the next, and the engine persists it to the checkpoint file between
// rounds so an interrupted run can resume.
type RunState struct {
	RunID          string       `json:"run_id"`
	Round          int          `json:"round"`
	PendingCount   int          `json:"pending_count"`
	CommunityCount int          `json:"community_count"`
	Deltas         []RoundDelta `json:"deltas,omitempty"`
	// LowImproveStreak counts consecutive rounds whose relative improvement
	// in both metrics stayed below the configured threshold.
	LowImproveStreak int       `json:"low_improve_streak"`
	Converged        bool      `json:"converged"`
	DryRun           bool      `json:"dry_run"`
	StartedAt        time.Time `json:"started_at"`
}

// RunSummary is the end-of-run report, both persisted as an artifact and
// rendered human-readable.
type RunSummary struct {
	RunID          string       `json:"run_id"`
	Rounds         int          `json:"rounds"`
	AutoMerges     int          `json:"auto_merges"`
	AgentMerges    int          `json:"agent_merges"`
	Splits         int          `json:"splits"`
	KeepSeparate   int          `json:"keep_separate"`
	ManualReview   []string     `json:"manual_review,omitempty"` // entry ids awaiting a human
	DegradedUnits  []string     `json:"degraded_units,omitempty"`
	Converged      bool         `json:"converged"`
	Aborted        bool         `json:"aborted"`
	AbortReason    string       `json:"abort_reason,omitempty"`
	DryRun         bool         `json:"dry_run"`
	Deltas         []RoundDelta `json:"deltas,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at"`
	StartingCount  int          `json:"starting_count"`
	RemainingCount int          `json:"remaining_count"`
	// Labels carries the LLM-generated name for each surviving community,
	// keyed by community id.
	Labels map[string]string `json:"labels,omitempty"`
}
