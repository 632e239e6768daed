package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[llm]
provider = "openai"
model = "gpt-4o-mini"

[engine]
max_rounds = 4
min_similarity = 0.8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 4, cfg.Engine.MaxRounds)
	assert.Equal(t, 0.8, cfg.Engine.MinSimilarity)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.98, cfg.Engine.AutoDedupThreshold)
	assert.Equal(t, 50, cfg.Engine.NeighborK)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("MEMGRAPH_URI", "bolt://db:7687")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.Equal(t, "bolt://db:7687", cfg.Store.URI)
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cfg := Default()
	cfg.Engine.AutoDedupThreshold = 0.5 // below min_similarity
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Engine.MinSimilarity = 1.5
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Engine.MaxRounds = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Engine.MaxCommunitySize = 1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Engine.Detector = "walktrap"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Engine.Detector = "lpa"
	assert.NoError(t, cfg.Validate())
}
