package atomize

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorhq/curator/internal/core/model"
	"github.com/curatorhq/curator/internal/store"
)

type mockLLM struct {
	responses map[string]string // keyed by a substring of the prompt
	fallback  string
	calls     int
}

func (m *mockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.calls++
	for marker, resp := range m.responses {
		if marker != "" && strings.Contains(prompt, marker) {
			return resp, nil
		}
	}
	return m.fallback, nil
}

func seed(t *testing.T, st *store.MemoryStore, id, title, body string) {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.Put(context.Background(), &model.Entry{
		ID:         id,
		Category:   "go",
		Section:    model.SectionUseful,
		Title:      title,
		Body:       body,
		Author:     "casey",
		EmbedState: model.EmbedReady,
		Status:     model.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))
}

func TestAtomicEntryIsMarkedNotMutated(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seed(t, st, "a", "one fact", "a single self-contained fact")

	at := &Atomizer{LLM: &mockLLM{fallback: `{"atomic": true}`}, Store: st}
	stats, err := at.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Classified)
	assert.Equal(t, 0, stats.Splits)

	e, err := st.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, e.Atomized)
	assert.Equal(t, model.StatusActive, e.Status)
	assert.Equal(t, "a single self-contained fact", e.Body)
}

func TestSplitCreatesChildrenAndRetiresParent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seed(t, st, "bundle", "two facts", "fact one. also fact two.")

	llm := &mockLLM{fallback: `{"atomic": false, "children": [
		{"title": "fact one", "body": "fact one."},
		{"title": "fact two", "body": "fact two."}
	]}`}
	at := &Atomizer{LLM: llm, Store: st}

	stats, err := at.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Splits)
	assert.Equal(t, 2, stats.Children)

	parent, err := st.Get(ctx, "bundle")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSplitOrigin, parent.Status)
	assert.True(t, parent.Atomized)

	children, err := st.List(ctx, store.Filter{Status: model.StatusActive})
	require.NoError(t, err)
	require.Len(t, children, 2)
	for _, c := range children {
		assert.Equal(t, "go", c.Category, "children inherit the parent category")
		assert.Equal(t, model.SectionUseful, c.Section)
		assert.Equal(t, "casey", c.Author)
		assert.Equal(t, model.EmbedPending, c.EmbedState)
		assert.True(t, c.Atomized, "children are not re-classified")
	}

	recs := st.Provenance()
	require.Len(t, recs, 1)
	assert.Equal(t, model.OpSplit, recs[0].Op)
	assert.Equal(t, []string{"bundle"}, recs[0].Parents)
	assert.Len(t, recs[0].Children, 2)
	assert.Equal(t, 0, recs[0].Round)
}

// cancelOnPutStore fails writes once the context is canceled, like the
// driver-backed store, and fires the cancellation from inside the first
// child write so it lands mid-split.
type cancelOnPutStore struct {
	*store.MemoryStore
	cancel context.CancelFunc
	puts   int
}

func (s *cancelOnPutStore) Put(ctx context.Context, e *model.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.puts++
	err := s.MemoryStore.Put(ctx, e)
	if s.puts == 1 && s.cancel != nil {
		s.cancel()
	}
	return err
}

func (s *cancelOnPutStore) TransitionStatus(ctx context.Context, id string, from, to model.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.TransitionStatus(ctx, id, from, to)
}

func (s *cancelOnPutStore) RecordProvenance(ctx context.Context, rec model.ProvenanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.RecordProvenance(ctx, rec)
}

func TestSplitSurvivesMidSequenceCancellation(t *testing.T) {
	mem := store.NewMemoryStore()
	seed(t, mem, "bundle", "two facts", "fact one. also fact two.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := &cancelOnPutStore{MemoryStore: mem, cancel: cancel}

	llm := &mockLLM{fallback: `{"atomic": false, "children": [
		{"title": "fact one", "body": "fact one."},
		{"title": "fact two", "body": "fact two."}
	]}`}
	stats, err := (&Atomizer{LLM: llm, Store: st}).Run(ctx)
	require.NoError(t, err, "a cancellation inside a split must not tear it apart")
	assert.Equal(t, 1, stats.Splits)

	parent, err := mem.Get(context.Background(), "bundle")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSplitOrigin, parent.Status)

	children, err := mem.List(context.Background(), store.Filter{Status: model.StatusActive})
	require.NoError(t, err)
	assert.Len(t, children, 2, "both children land even though the context died after the first")

	require.Len(t, mem.Provenance(), 1)
	assert.Equal(t, model.OpSplit, mem.Provenance()[0].Op)
}

func TestTooManyChildrenFailsClassification(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seed(t, st, "a", "t", "b")

	llm := &mockLLM{fallback: `{"atomic": false, "children": [
		{"title": "1", "body": "1"}, {"title": "2", "body": "2"},
		{"title": "3", "body": "3"}, {"title": "4", "body": "4"},
		{"title": "5", "body": "5"}
	]}`}
	stats, err := (&Atomizer{LLM: llm, Store: st}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Splits)

	e, err := st.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, e.Atomized, "a failed classification leaves the entry unchecked")
	assert.Equal(t, model.StatusActive, e.Status)
}

func TestAlreadyAtomizedEntriesAreSkipped(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seed(t, st, "a", "t", "b")

	llm := &mockLLM{fallback: `{"atomic": true}`}
	at := &Atomizer{LLM: llm, Store: st}

	_, err := at.Run(ctx)
	require.NoError(t, err)
	_, err = at.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, llm.calls, "the pre-pass runs once per entry, ever")
}
