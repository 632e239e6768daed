package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/curatorhq/curator/internal/config"
	"github.com/curatorhq/curator/internal/driver"
	"github.com/curatorhq/curator/internal/llm"
	"github.com/curatorhq/curator/internal/store"
)

// Bootstrap builds a production Curator from configuration: Memgraph
// store, provider-selected LLM behind the retry wrapper, and the LLM
// reranker when a rerank model is configured. The returned func releases
// the database connection.
func Bootstrap(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*Curator, store.EntryStore, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	drv, err := driver.NewMemgraphDriver(cfg.Store.URI, cfg.Store.User, cfg.Store.Password, cfg.LLM.EmbeddingDim, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to memgraph: %w", err)
	}
	closeFn := func() {
		if err := drv.Close(context.Background()); err != nil {
			log.Warnw("driver close failed", "err", err)
		}
	}
	if err := drv.BuildIndices(ctx); err != nil {
		closeFn()
		return nil, nil, nil, fmt.Errorf("build indices: %w", err)
	}
	st := store.NewMemgraphStore(drv)

	llmClient, embedder, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		closeFn()
		return nil, nil, nil, fmt.Errorf("initialize llm client: %w", err)
	}
	rc := llm.DefaultRetryConfig()
	rc.MaxRetries = cfg.LLM.MaxRetries
	rc.RatePerSecond = cfg.LLM.RatePerSecond
	if cfg.LLM.TimeoutSeconds > 0 {
		rc.Timeout = time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	}
	agent := llm.NewRetryClient(llmClient, rc)

	var reranker llm.RerankerClient
	if cfg.Cache.RerankModel != "" {
		reranker = llm.NewSimpleLLMReranker(agent)
	}

	cur := New(cfg, Deps{
		Store:     st,
		Neighbors: st,
		Agent:     agent,
		Embedder:  embedder,
		Reranker:  reranker,
		Log:       log,
	})
	return cur, st, closeFn, nil
}
