//go:build integration

package integration

import (
	"context"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/curatorhq/curator/internal/config"
	"github.com/curatorhq/curator/internal/core"
	"github.com/curatorhq/curator/internal/core/model"
	"github.com/curatorhq/curator/internal/store"
)

// TestFullCurationRun exercises the real stack end to end: Memgraph for
// storage and vector search, the configured LLM backend for atomicity,
// decisions, and labeling. Requires MEMGRAPH_URI and a reachable LLM.
func TestFullCurationRun(t *testing.T) {
	_ = godotenv.Load("../../.env")

	if os.Getenv("MEMGRAPH_URI") == "" {
		t.Skip("skipping integration test: MEMGRAPH_URI not set")
	}

	cfg := config.Default()
	cfg.ApplyEnv()
	cfg.Engine.MaxRounds = 3
	cfg.Artifacts.Dir = t.TempDir()
	cfg.Cache.Dir = t.TempDir()

	log := zaptest.NewLogger(t).Sugar()
	ctx := context.Background()

	curator, st, closeFn, err := core.Bootstrap(ctx, cfg, log)
	require.NoError(t, err)
	defer closeFn()

	seedDuplicates(t, ctx, st)

	sum, err := curator.Run(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, sum)

	assert.False(t, sum.Aborted)
	assert.LessOrEqual(t, sum.Rounds, cfg.Engine.MaxRounds)
	assert.Greater(t, sum.AutoMerges+sum.AgentMerges, 0, "the seeded duplicates should collapse")

	// Every merge must be explained by provenance.
	for _, e := range listByStatus(t, ctx, st, model.StatusMerged) {
		recs, err := st.Lineage(ctx, e.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, recs, "merged entry %s has no provenance", e.ID)
	}
}

func seedDuplicates(t *testing.T, ctx context.Context, st store.EntryStore) {
	t.Helper()
	entries := []struct{ title, body string }{
		{"Retry on 429", "When the API returns 429, back off exponentially before retrying."},
		{"Back off on rate limits", "A 429 response means you must wait with exponential backoff and retry."},
		{"Handle rate limiting", "Retry rate-limited requests after an exponential backoff delay."},
		{"Pin dependency versions", "Always pin exact dependency versions in production lockfiles."},
	}
	for i, in := range entries {
		e := &model.Entry{
			ID:         uuidFor(i),
			Category:   "integration-smoke",
			Section:    model.SectionUseful,
			Title:      in.title,
			Body:       in.body,
			EmbedState: model.EmbedPending,
			Status:     model.StatusActive,
		}
		require.NoError(t, st.Put(ctx, e))
	}
}

func listByStatus(t *testing.T, ctx context.Context, st store.EntryStore, status model.Status) []*model.Entry {
	t.Helper()
	entries, err := st.List(ctx, store.Filter{Category: "integration-smoke", Status: status})
	require.NoError(t, err)
	return entries
}

func uuidFor(i int) string {
	return "integration-smoke-" + string(rune('a'+i))
}
