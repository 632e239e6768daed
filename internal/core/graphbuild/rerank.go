package graphbuild

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/curatorhq/curator/internal/llm"
)

// RerankCache is a disk-backed score cache keyed by (model, pair). An
// absent pair is not an error; the builder falls back to embed-only
// weighting for it.
type RerankCache struct {
	mu     sync.Mutex
	path   string
	model  string
	scores map[string]float64
	dirty  bool
}

func OpenRerankCache(dir, rerankModel string) (*RerankCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	c := &RerankCache{
		path:   filepath.Join(dir, "rerank-"+sanitize(rerankModel)+".json"),
		model:  rerankModel,
		scores: make(map[string]float64),
	}
	data, err := os.ReadFile(c.path)
	if err == nil {
		if err := json.Unmarshal(data, &c.scores); err != nil {
			// Corrupt cache degrades to empty, same as absent.
			c.scores = make(map[string]float64)
		}
	}
	return c, nil
}

func (c *RerankCache) Score(a, b string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.scores[pairKey(a, b)]
	return s, ok
}

func (c *RerankCache) put(a, b string, score float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scores[pairKey(a, b)] = score
	c.dirty = true
}

// Warm fills missing pair scores through the reranker client. Individual
// scoring failures are skipped; the affected pairs simply stay embed-only.
func (c *RerankCache) Warm(ctx context.Context, reranker llm.RerankerClient, pairs [][2]string, text func(id string) string) error {
	for _, p := range pairs {
		if _, ok := c.Score(p[0], p[1]); ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		score, err := reranker.Score(ctx, text(p[0]), text(p[1]))
		if err != nil {
			continue
		}
		c.put(p[0], p[1], score)
	}
	return c.Flush()
}

func (c *RerankCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if err := writeJSONAtomic(c.path, c.scores); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "default"
	}
	return string(out)
}
