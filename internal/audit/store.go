package audit

import (
	"context"

	"github.com/curatorhq/curator/internal/core/model"
	"github.com/curatorhq/curator/internal/store"
)

// TeeStore forwards every call to the wrapped store and mirrors the
// append-only records into the run's JSONL log. In dry-run mode the
// wrapped store is an overlay, so the log still receives the full decision
// stream while the real store stays untouched.
type TeeStore struct {
	store.EntryStore
	Log *Log
}

func (t *TeeStore) RecordProvenance(ctx context.Context, rec model.ProvenanceRecord) error {
	if err := t.EntryStore.RecordProvenance(ctx, rec); err != nil {
		return err
	}
	return t.Log.Provenance(rec)
}

func (t *TeeStore) RecordDecision(ctx context.Context, dec model.Decision) error {
	if err := t.EntryStore.RecordDecision(ctx, dec); err != nil {
		return err
	}
	return t.Log.Decision(dec)
}
