package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorhq/curator/internal/core/model"
)

func newEntry(id, category string) *model.Entry {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &model.Entry{
		ID:         id,
		Category:   category,
		Section:    model.SectionUseful,
		Title:      "title " + id,
		Body:       "body " + id,
		EmbedState: model.EmbedReady,
		Status:     model.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	require.NoError(t, st.Put(ctx, newEntry("a", "go")))
	got, err := st.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "title a", got.Title)

	_, err = st.Get(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryStoreListFilters(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	require.NoError(t, st.Put(ctx, newEntry("a", "go")))
	require.NoError(t, st.Put(ctx, newEntry("b", "go")))
	require.NoError(t, st.Put(ctx, newEntry("c", "rust")))

	merged := newEntry("d", "go")
	merged.Status = model.StatusMerged
	require.NoError(t, st.Put(ctx, merged))

	out, err := st.List(ctx, Filter{Category: "go", Status: model.StatusActive})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)

	cats, err := st.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "rust"}, cats)
}

func TestTransitionStatusConditional(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	require.NoError(t, st.Put(ctx, newEntry("a", "go")))

	require.NoError(t, st.TransitionStatus(ctx, "a", model.StatusActive, model.StatusMerged))

	// Second transition from active must fail: the entry moved on.
	err := st.TransitionStatus(ctx, "a", model.StatusActive, model.StatusMerged)
	assert.ErrorIs(t, err, model.ErrStatusConflict)

	err = st.TransitionStatus(ctx, "nope", model.StatusActive, model.StatusMerged)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryStoreTopKOrdering(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, st.Put(ctx, newEntry(id, "go")))
	}
	require.NoError(t, st.SetVector(ctx, "a", []float32{1, 0}))
	require.NoError(t, st.SetVector(ctx, "b", []float32{1, 0.1}))
	require.NoError(t, st.SetVector(ctx, "c", []float32{0, 1}))

	pairs, err := st.TopK(ctx, "go", 1)
	require.NoError(t, err)
	require.Len(t, pairs, 3, "one best neighbor per source")

	bySource := make(map[string]string)
	for _, p := range pairs {
		bySource[p.Source] = p.Target
	}
	assert.Equal(t, "b", bySource["a"], "nearest to a is b")
	assert.Equal(t, "a", bySource["b"], "nearest to b is a")
}

func TestLineageReturnsRecordsForSurvivor(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	rec := model.ProvenanceRecord{
		ID:       "p1",
		Op:       model.OpMerge,
		Parents:  []string{"b"},
		Children: []string{"a"},
		Round:    1,
	}
	require.NoError(t, st.RecordProvenance(ctx, rec))

	out, err := st.Lineage(ctx, "a")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "p1", out[0].ID)

	out, err = st.Lineage(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, out)
}
