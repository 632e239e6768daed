package model

import "time"

// OpKind distinguishes how a provenance record came to be.
type OpKind string

const (
	OpMerge     OpKind = "merge"
	OpSplit     OpKind = "split"
	OpAutoDedup OpKind = "auto_dedup"
)

// ProvenanceRecord links a split or merge to its origins. Every mutation
// the engine applies writes exactly one record; records are never deleted,
// so the full lineage of any entry can be replayed from the log alone.
type ProvenanceRecord struct {
	ID        string    `json:"id"`
	Op        OpKind    `json:"op"`
	Parents   []string  `json:"parents"`  // origin entry ids
	Children  []string  `json:"children"` // resulting / surviving entry ids
	Round     int       `json:"round"`
	CreatedAt time.Time `json:"created_at"`
}
