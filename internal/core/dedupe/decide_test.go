package dedupe

import (
	"context"
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorhq/curator/internal/core/model"
)

type mockLLM struct {
	response string
	err      error
}

func (m *mockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func testCommunity() (*model.Community, map[string]*model.Entry) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &model.Community{
		ID:       "go:r1:a",
		Category: "go",
		Round:    1,
		Members:  []string{"a", "b", "c"},
		Edges: []model.SimilarityEdge{
			{A: "a", B: "b", Weight: 0.92},
			{A: "b", B: "c", Weight: 0.93},
		},
	}
	entries := map[string]*model.Entry{
		"a": {ID: "a", Title: "first", Body: "body a", Section: model.SectionUseful, CreatedAt: base},
		"b": {ID: "b", Title: "second", Body: "body b", Section: model.SectionUseful, CreatedAt: base.Add(time.Minute)},
		"c": {ID: "c", Title: "third", Body: "body c", Section: model.SectionUseful, CreatedAt: base.Add(2 * time.Minute)},
	}
	return c, entries
}

func TestDecideMergeAllExpandsToPairs(t *testing.T) {
	c, entries := testCommunity()
	d := NewDecider(&mockLLM{response: `{"decision": "merge_all", "notes": "same fact"}`}, "", nil)

	dec, err := d.Decide(context.Background(), c, entries)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionMergeAll, dec.Kind)
	assert.Equal(t, "same fact", dec.Rationale)
	// Everything is absorbed into the earliest-created member.
	assert.Equal(t, []model.MergePair{
		{Source: "b", Dest: "a"},
		{Source: "c", Dest: "a"},
	}, dec.Merges)
}

func TestDecideMergeSubsetKeepsListedPairs(t *testing.T) {
	c, entries := testCommunity()
	d := NewDecider(&mockLLM{response: `{"decision": "merge_subset", "merges": [{"source": "b", "dest": "a"}]}`}, "", nil)

	dec, err := d.Decide(context.Background(), c, entries)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionMergeSubset, dec.Kind)
	assert.Equal(t, []model.MergePair{{Source: "b", Dest: "a"}}, dec.Merges)
}

func TestDecideMissingDecisionFieldIsManualReview(t *testing.T) {
	c, entries := testCommunity()
	d := NewDecider(&mockLLM{response: `{"notes": "these look similar"}`}, "", nil)

	dec, err := d.Decide(context.Background(), c, entries)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionManualReview, dec.Kind)
	assert.Empty(t, dec.Merges, "a contract failure must never produce a merge")
	assert.Contains(t, dec.Rationale, "missing decision field")
}

func TestDecideUnknownKindIsManualReview(t *testing.T) {
	c, entries := testCommunity()
	d := NewDecider(&mockLLM{response: `{"decision": "merge_everything_now"}`}, "", nil)

	dec, err := d.Decide(context.Background(), c, entries)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionManualReview, dec.Kind)
}

func TestDecideRejectsPairsOutsideCommunity(t *testing.T) {
	c, entries := testCommunity()
	d := NewDecider(&mockLLM{response: `{"decision": "merge_subset", "merges": [{"source": "b", "dest": "zz"}]}`}, "", nil)

	dec, err := d.Decide(context.Background(), c, entries)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionManualReview, dec.Kind)
	assert.Empty(t, dec.Merges)
}

func TestDecideSubsetWithoutPairsIsManualReview(t *testing.T) {
	c, entries := testCommunity()
	d := NewDecider(&mockLLM{response: `{"decision": "merge_subset"}`}, "", nil)

	dec, err := d.Decide(context.Background(), c, entries)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionManualReview, dec.Kind)
}

func TestDecideUnparseableResponseIsManualReview(t *testing.T) {
	c, entries := testCommunity()
	d := NewDecider(&mockLLM{response: "I am not sure what to say here."}, "", nil)

	dec, err := d.Decide(context.Background(), c, entries)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionManualReview, dec.Kind)
}

func TestDecideTransportFailureSurfacesAsError(t *testing.T) {
	c, entries := testCommunity()
	d := NewDecider(&mockLLM{err: errors.New("connection refused")}, "", nil)

	_, err := d.Decide(context.Background(), c, entries)
	require.Error(t, err)
	var terr *model.TransportError
	assert.ErrorAs(t, err, &terr)
}

func TestDecideKeepSeparate(t *testing.T) {
	c, entries := testCommunity()
	d := NewDecider(&mockLLM{response: "```json\n{\"decision\": \"keep_separate\"}\n```"}, "", nil)

	dec, err := d.Decide(context.Background(), c, entries)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionKeepSeparate, dec.Kind)
	assert.Empty(t, dec.Merges)
}

func TestSnippetKeepsRuneBoundaries(t *testing.T) {
	s := "функция" // two bytes per rune
	// Byte 3 lands inside the second rune.
	out := snippet(s, 3)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "ф...", out)

	assert.Equal(t, "a b", snippet("a\nb", 10), "newlines flatten, short strings pass through")
}
