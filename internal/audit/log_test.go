package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorhq/curator/internal/core/model"
)

func TestLogAppendsAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir)
	require.NoError(t, err)

	dec := model.Decision{ID: "d1", Category: "go", Round: 1, Kind: model.DecisionKeepSeparate}
	rec := model.ProvenanceRecord{ID: "p1", Op: model.OpMerge, Parents: []string{"b"}, Children: []string{"a"}, Round: 1}
	require.NoError(t, log.Decision(dec))
	require.NoError(t, log.Provenance(rec))
	require.NoError(t, log.Close())

	decisions, err := ReadDecisions(dir)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, model.DecisionKeepSeparate, decisions[0].Kind)

	records, err := ReadProvenance(dir)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"b"}, records[0].Parents)
}

func TestLogAppendsAcrossReopens(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, first.Decision(model.Decision{ID: "d1"}))
	require.NoError(t, first.Close())

	second, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, second.Decision(model.Decision{ID: "d2"}))
	require.NoError(t, second.Close())

	decisions, err := ReadDecisions(dir)
	require.NoError(t, err)
	require.Len(t, decisions, 2, "reopening must append, never truncate")
	assert.Equal(t, "d1", decisions[0].ID)
	assert.Equal(t, "d2", decisions[1].ID)
}

// TestLineageReconstruction follows the chain: x and y were auto-merged
// into x, then x was split into s1 and s2, then s1 absorbed z. The full
// history of s1 must be recoverable from the log alone.
func TestLineageReconstruction(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir)
	require.NoError(t, err)

	records := []model.ProvenanceRecord{
		{ID: "p1", Op: model.OpAutoDedup, Parents: []string{"y"}, Children: []string{"x"}, Round: 1},
		{ID: "p2", Op: model.OpSplit, Parents: []string{"x"}, Children: []string{"s1", "s2"}, Round: 1},
		{ID: "p3", Op: model.OpMerge, Parents: []string{"z"}, Children: []string{"s1"}, Round: 2},
		{ID: "p4", Op: model.OpMerge, Parents: []string{"unrelated"}, Children: []string{"other"}, Round: 2},
	}
	for _, rec := range records {
		require.NoError(t, log.Provenance(rec))
	}
	require.NoError(t, log.Close())

	lineage, err := Lineage(dir, "s1")
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, rec := range lineage {
		ids[rec.ID] = true
	}
	assert.True(t, ids["p2"], "the split that created s1")
	assert.True(t, ids["p3"], "the merge s1 absorbed")
	assert.True(t, ids["p1"], "the auto-merge behind s1's parent")
	assert.False(t, ids["p4"], "unrelated records stay out")
}

func TestLineageMissingLogIsEmpty(t *testing.T) {
	lineage, err := Lineage(t.TempDir(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, lineage)
}

func TestRenderSummaryMentionsOutcome(t *testing.T) {
	sum := &model.RunSummary{
		RunID:          "run-1",
		Rounds:         3,
		AutoMerges:     2,
		AgentMerges:    4,
		Converged:      true,
		StartingCount:  20,
		RemainingCount: 13,
		StartedAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt:     time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC),
		Labels:         map[string]string{"go:r3:a": "Retry and backoff guidance"},
	}
	out := RenderSummary(sum)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "converged after 3 round(s)")
	assert.Contains(t, out, "20 -> 13")
	assert.Contains(t, out, "Retry and backoff guidance")

	sum.Converged = false
	sum.Aborted = true
	sum.AbortReason = "graph rebuild in round 3: index down"
	out = RenderSummary(sum)
	assert.Contains(t, out, "aborted at round 3")
	assert.Contains(t, out, "index down")
}
