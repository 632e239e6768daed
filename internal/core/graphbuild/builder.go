package graphbuild

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/curatorhq/curator/internal/core/model"
)

// NeighborPair is one directed observation from the vector index: Target
// appeared in Source's top-k list with the given embedding similarity.
type NeighborPair struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Score  float64 `json:"score"`
}

// NeighborSource is a top-k nearest-neighbor query against a vector index,
// idempotent for a fixed index version. Unavailability is fatal for the
// build; there is no partial graph.
type NeighborSource interface {
	TopK(ctx context.Context, category string, k int) ([]NeighborPair, error)
}

// RerankSource is a cached cross-encoder score lookup. The second return
// reports a cache hit; a miss degrades the pair to embed-only scoring and
// never blocks graph construction.
type RerankSource interface {
	Score(a, b string) (float64, bool)
}

// Builder turns per-category neighbor lists into a sparse weighted
// undirected graph.
type Builder struct {
	Neighbors NeighborSource
	Rerank    RerankSource   // optional
	Cache     *NeighborCache // optional
	K         int

	MinSimilarity float64
	EmbedWeight   float64
	RerankWeight  float64

	Log *zap.SugaredLogger
}

// Build constructs the graph over the given node set. Directed
// observations below MinSimilarity are dropped before symmetrization;
// when both directions survive the undirected edge takes the max score.
// Edges whose final blended weight falls under MinSimilarity are never
// materialized, so the graph is sparse by construction.
func (b *Builder) Build(ctx context.Context, category string, nodes []string) (*Graph, error) {
	pairs, err := b.fetchNeighbors(ctx, category)
	if err != nil {
		return nil, &model.TransportError{Op: fmt.Sprintf("top-k neighbors for %s", category), Err: err}
	}

	inSet := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		inSet[n] = true
	}

	// Best directed score per canonical pair.
	best := make(map[[2]string]float64)
	for _, p := range pairs {
		if p.Source == p.Target || !inSet[p.Source] || !inSet[p.Target] {
			continue
		}
		if p.Score < b.MinSimilarity {
			continue
		}
		key := canonical(p.Source, p.Target)
		if p.Score > best[key] {
			best[key] = p.Score
		}
	}

	g := &Graph{Category: category, Nodes: append([]string(nil), nodes...)}
	sort.Strings(g.Nodes)

	for key, embedScore := range best {
		weight := embedScore
		if b.Rerank != nil {
			if rr, ok := b.Rerank.Score(key[0], key[1]); ok {
				weight = b.EmbedWeight*embedScore + b.RerankWeight*rr
			}
		}
		if weight < b.MinSimilarity {
			continue
		}
		g.Edges = append(g.Edges, model.NewSimilarityEdge(key[0], key[1], weight))
	}
	sortEdges(g.Edges)

	if b.Log != nil {
		b.Log.Debugw("graph built", "category", category, "nodes", len(g.Nodes), "edges", len(g.Edges))
	}
	return g, nil
}

func (b *Builder) fetchNeighbors(ctx context.Context, category string) ([]NeighborPair, error) {
	if b.Cache != nil {
		if pairs, ok := b.Cache.Get(category, b.K); ok {
			return pairs, nil
		}
	}
	pairs, err := b.Neighbors.TopK(ctx, category, b.K)
	if err != nil {
		return nil, err
	}
	if b.Cache != nil {
		if err := b.Cache.Put(category, b.K, pairs); err != nil && b.Log != nil {
			b.Log.Warnw("neighbor cache write failed", "category", category, "err", err)
		}
	}
	return pairs, nil
}

func canonical(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}
