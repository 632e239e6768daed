package model

import "time"

// Section classifies what kind of knowledge an entry carries.
type Section string

const (
	SectionUseful     Section = "useful"
	SectionHarmful    Section = "harmful"
	SectionContextual Section = "contextual"
)

// Status is the lifecycle state of an entry. Entries are never physically
// deleted; history is preserved through status plus provenance records.
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusMerged      Status = "merged"
	StatusSplitOrigin Status = "split_origin"
)

// EmbedState tracks whether the embedding subsystem has a current vector
// for the entry. The vector itself is owned by that subsystem and is only
// referenced by entry id.
type EmbedState string

const (
	EmbedPending EmbedState = "pending"
	EmbedReady   EmbedState = "ready"
	EmbedStale   EmbedState = "stale"
)

// Entry is an atomic knowledge unit (an "experience" or "skill").
// Category is immutable once the entry has been embedded: changing it
// would invalidate the entry's similarity-graph membership.
type Entry struct {
	ID         string     `json:"id"`
	Category   string     `json:"category"`
	Section    Section    `json:"section"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	Context    string     `json:"context,omitempty"`
	Author     string     `json:"author,omitempty"`
	EmbedState EmbedState `json:"embed_state"`
	Status     Status     `json:"status"`
	Atomized   bool       `json:"atomized"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Curatable reports whether the entry participates in graph construction.
func (e *Entry) Curatable() bool {
	return e.Status == StatusActive && e.EmbedState == EmbedReady
}
