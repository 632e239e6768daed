package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorhq/curator/internal/core/model"
)

func TestOverlayLeavesBaseUntouched(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	require.NoError(t, base.Put(ctx, newEntry("a", "go")))
	require.NoError(t, base.Put(ctx, newEntry("b", "go")))
	before := base.Snapshot()

	o := NewOverlay(base)
	require.NoError(t, o.TransitionStatus(ctx, "a", model.StatusActive, model.StatusMerged))
	require.NoError(t, o.Put(ctx, newEntry("c", "go")))
	require.NoError(t, o.RecordDecision(ctx, model.Decision{ID: "d1", Kind: model.DecisionKeepSeparate}))

	assert.Equal(t, before, base.Snapshot(), "dry-run writes must not reach the base store")
	assert.Empty(t, base.Decisions())

	// Reads through the overlay see the new state.
	got, err := o.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.StatusMerged, got.Status)
}

func TestOverlayListMergesBaseAndOverlay(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	require.NoError(t, base.Put(ctx, newEntry("a", "go")))
	require.NoError(t, base.Put(ctx, newEntry("b", "go")))

	o := NewOverlay(base)
	require.NoError(t, o.TransitionStatus(ctx, "b", model.StatusActive, model.StatusMerged))
	require.NoError(t, o.Put(ctx, newEntry("c", "go")))

	active, err := o.List(ctx, Filter{Status: model.StatusActive})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].ID)
	assert.Equal(t, "c", active[1].ID)
}

func TestOverlayMutationsDump(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	require.NoError(t, base.Put(ctx, newEntry("a", "go")))

	o := NewOverlay(base)
	require.NoError(t, o.TransitionStatus(ctx, "a", model.StatusActive, model.StatusInactive))
	require.NoError(t, o.RecordProvenance(ctx, model.ProvenanceRecord{ID: "p1", Op: model.OpSplit}))

	m := o.Mutations()
	require.Len(t, m.Entries, 1)
	assert.Equal(t, model.StatusInactive, m.Entries[0].Status)
	require.Len(t, m.Provenance, 1)
	assert.Equal(t, "p1", m.Provenance[0].ID)
}
