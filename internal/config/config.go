package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider       string  `toml:"provider"`
	Model          string  `toml:"model"`
	EmbeddingModel string  `toml:"embedding_model"`
	EmbeddingDim   int     `toml:"embedding_dim"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxRetries     int     `toml:"max_retries"`
	RatePerSecond  float64 `toml:"rate_per_second"`
}

type StoreConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type EngineConfig struct {
	MaxRounds            int     `toml:"max_rounds"`
	ImprovementThreshold float64 `toml:"improvement_threshold"`
	NeighborK            int     `toml:"neighbor_k"`
	MinSimilarity        float64 `toml:"min_similarity"`
	AutoDedupThreshold   float64 `toml:"auto_dedup_threshold"`
	MaxCommunitySize     int     `toml:"max_community_size"`
	EmbedWeight          float64 `toml:"embed_weight"`
	RerankWeight         float64 `toml:"rerank_weight"`
	Concurrency          int     `toml:"concurrency"`
	Seed                 int64   `toml:"seed"`
	Detector             string  `toml:"detector"` // louvain (default) or lpa
	DryRun               bool    `toml:"dry_run"`
}

type CacheConfig struct {
	Dir          string `toml:"dir"`
	IndexVersion string `toml:"index_version"`
	RerankModel  string `toml:"rerank_model"`
	Refresh      bool   `toml:"refresh"`
}

type ArtifactsConfig struct {
	Dir string `toml:"dir"`
}

type Prompts struct {
	Atomicity     string `toml:"atomicity"`
	Decision      string `toml:"decision"`
	CommunityName string `toml:"community_name"`
}

type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Store     StoreConfig     `toml:"store"`
	Engine    EngineConfig    `toml:"engine"`
	Cache     CacheConfig     `toml:"cache"`
	Artifacts ArtifactsConfig `toml:"artifacts"`
	Prompts   Prompts         `toml:"prompts"`
}

// Default returns the built-in configuration. Every threshold here can be
// overridden by the TOML file, env vars, or CLI flags (in that order).
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:       "ollama",
			Model:          "gpt-oss:latest",
			EmbeddingDim:   768,
			BaseURL:        "http://localhost:11434",
			TimeoutSeconds: 120,
			MaxRetries:     2,
			RatePerSecond:  2,
		},
		Store: StoreConfig{
			URI: "bolt://localhost:7687",
		},
		Engine: EngineConfig{
			MaxRounds:            10,
			ImprovementThreshold: 0.05,
			NeighborK:            50,
			MinSimilarity:        0.72,
			AutoDedupThreshold:   0.98,
			MaxCommunitySize:     50,
			EmbedWeight:          0.7,
			RerankWeight:         0.3,
			Concurrency:          3,
			Seed:                 1,
			Detector:             "louvain",
		},
		Cache: CacheConfig{
			Dir:          ".curator/cache",
			IndexVersion: "v1",
		},
		Artifacts: ArtifactsConfig{
			Dir: ".curator/runs",
		},
	}
}

// Load reads a TOML file over the defaults, then applies env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides config fields from the environment. Only connection
// and credential material is env-controlled; tuning stays in file/flags.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		c.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("MEMGRAPH_URI"); v != "" {
		c.Store.URI = v
	}
	if v := os.Getenv("MEMGRAPH_USER"); v != "" {
		c.Store.User = v
	}
	if v := os.Getenv("MEMGRAPH_PASSWORD"); v != "" {
		c.Store.Password = v
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.MaxRounds < 1 {
		return fmt.Errorf("engine.max_rounds must be >= 1 (got %d)", c.Engine.MaxRounds)
	}
	if c.Engine.MinSimilarity < 0 || c.Engine.MinSimilarity > 1 {
		return fmt.Errorf("engine.min_similarity must be in [0,1] (got %g)", c.Engine.MinSimilarity)
	}
	if c.Engine.AutoDedupThreshold < c.Engine.MinSimilarity {
		return fmt.Errorf("engine.auto_dedup_threshold (%g) below engine.min_similarity (%g)",
			c.Engine.AutoDedupThreshold, c.Engine.MinSimilarity)
	}
	if c.Engine.MaxCommunitySize < 2 {
		return fmt.Errorf("engine.max_community_size must be >= 2 (got %d)", c.Engine.MaxCommunitySize)
	}
	if w := c.Engine.EmbedWeight + c.Engine.RerankWeight; w <= 0 {
		return fmt.Errorf("blend weights must sum to a positive value (got %g)", w)
	}
	if c.Engine.Concurrency < 1 {
		return fmt.Errorf("engine.concurrency must be >= 1 (got %d)", c.Engine.Concurrency)
	}
	switch c.Engine.Detector {
	case "", "louvain", "lpa":
	default:
		return fmt.Errorf("engine.detector must be louvain or lpa (got %q)", c.Engine.Detector)
	}
	return nil
}
