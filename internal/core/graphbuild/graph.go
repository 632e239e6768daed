package graphbuild

import (
	"sort"

	"github.com/curatorhq/curator/internal/core/model"
)

// Graph is one category's sparse similarity graph. It is rebuilt from
// storage state every round and never mutated in place; stale-edge bugs
// after merges are avoided by regeneration, not bookkeeping.
type Graph struct {
	Category string                 `json:"category"`
	Nodes    []string               `json:"nodes"` // sorted entry ids
	Edges    []model.SimilarityEdge `json:"edges"`
}

// Adjacency materializes the weighted neighbor map.
func (g *Graph) Adjacency() map[string]map[string]float64 {
	adj := make(map[string]map[string]float64, len(g.Nodes))
	for _, n := range g.Nodes {
		adj[n] = make(map[string]float64)
	}
	for _, e := range g.Edges {
		if _, ok := adj[e.A]; !ok {
			continue
		}
		if _, ok := adj[e.B]; !ok {
			continue
		}
		adj[e.A][e.B] = e.Weight
		adj[e.B][e.A] = e.Weight
	}
	return adj
}

// Without returns a copy of the graph with the given nodes (and their
// incident edges) removed. Auto-dedup uses it to drop merged entries from
// further consideration within the round.
func (g *Graph) Without(removed map[string]bool) *Graph {
	if len(removed) == 0 {
		return g
	}
	out := &Graph{Category: g.Category}
	for _, n := range g.Nodes {
		if !removed[n] {
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, e := range g.Edges {
		if !removed[e.A] && !removed[e.B] {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

func sortEdges(edges []model.SimilarityEdge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
}
