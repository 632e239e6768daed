// Package store provides entry persistence for the curation engine. The
// engine is the sole writer during a run; concurrent runs are excluded by
// the engine's advisory lock, not by the store.
package store

import (
	"context"

	"github.com/curatorhq/curator/internal/core/model"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Category   string
	Status     model.Status
	EmbedState model.EmbedState
}

// EntryStore is the engine's view of entry persistence. Implementations:
// MemgraphStore for production, MemoryStore for tests and ephemeral runs,
// Overlay wrapping either for dry-run mode.
type EntryStore interface {
	Get(ctx context.Context, id string) (*model.Entry, error)
	Put(ctx context.Context, e *model.Entry) error
	List(ctx context.Context, f Filter) ([]*model.Entry, error)
	Categories(ctx context.Context) ([]string, error)

	// TransitionStatus is the atomic conditional write the apply phase
	// relies on: it fails with model.ErrStatusConflict when the entry is
	// not in the expected state, and model.ErrNotFound for unknown ids.
	TransitionStatus(ctx context.Context, id string, from, to model.Status) error

	RecordProvenance(ctx context.Context, rec model.ProvenanceRecord) error
	RecordDecision(ctx context.Context, dec model.Decision) error
	Lineage(ctx context.Context, id string) ([]model.ProvenanceRecord, error)

	// Ping verifies the store is reachable; run validation calls it once
	// before round 1.
	Ping(ctx context.Context) error
}
