package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/curatorhq/curator/internal/core/model"
	"github.com/curatorhq/curator/internal/store"
)

// MergeEntries applies one merge pair: the source entry transitions
// active→merged, the surviving destination absorbs a pointer to it, and a
// provenance record links the two. The status transition is conditional,
// so a source already consumed elsewhere fails with ErrStatusConflict
// instead of being merged twice.
func MergeEntries(ctx context.Context, st store.EntryStore, sourceID, destID string, op model.OpKind, round int) (model.ProvenanceRecord, error) {
	var zero model.ProvenanceRecord

	dest, err := st.Get(ctx, destID)
	if err != nil {
		return zero, fmt.Errorf("load merge dest %s: %w", destID, err)
	}
	source, err := st.Get(ctx, sourceID)
	if err != nil {
		return zero, fmt.Errorf("load merge source %s: %w", sourceID, err)
	}
	if dest.Status != model.StatusActive {
		return zero, model.ErrAlreadyMerged
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	// Once the sequence starts, cancellation must not split it: the status
	// transition, the dest update, and the provenance record land together
	// or the entry would be durably merged with no trace in the log.
	ctx = context.WithoutCancel(ctx)

	if err := st.TransitionStatus(ctx, sourceID, model.StatusActive, model.StatusMerged); err != nil {
		return zero, err
	}

	now := time.Now().UTC()
	absorbed := fmt.Sprintf("absorbed %s: %s", source.ID, source.Title)
	if dest.Context == "" {
		dest.Context = absorbed
	} else {
		dest.Context += "\n" + absorbed
	}
	dest.UpdatedAt = now
	if err := st.Put(ctx, dest); err != nil {
		return zero, fmt.Errorf("update merge dest %s: %w", destID, err)
	}

	rec := model.ProvenanceRecord{
		ID:        uuid.New().String(),
		Op:        op,
		Parents:   []string{sourceID},
		Children:  []string{destID},
		Round:     round,
		CreatedAt: now,
	}
	if err := st.RecordProvenance(ctx, rec); err != nil {
		return zero, fmt.Errorf("record provenance: %w", err)
	}
	return rec, nil
}
