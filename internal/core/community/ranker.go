package community

import (
	"fmt"
	"sort"

	"github.com/curatorhq/curator/internal/core/graphbuild"
	"github.com/curatorhq/curator/internal/core/model"
)

// Priority blend weights and the size-score plateau.
const (
	weightAvgSim  = 0.6
	weightDensity = 0.3
	weightSize    = 0.1

	sizePeakLow  = 3
	sizePeakHigh = 10
)

// BuildRanked turns a raw partition into scored communities ready for
// agent processing, in strict descending priority order (ties broken by
// community id). Singletons are dropped — they have no merge candidate.
// Cells over maxSize are not passed through unchanged: they are split
// along their weakest internal connectivity until every piece fits, and
// the pieces are flagged as coming from an oversized cell.
func BuildRanked(g *graphbuild.Graph, parts [][]string, round, maxSize int) []model.Community {
	adj := g.Adjacency()

	var out []model.Community
	for _, members := range parts {
		if len(members) < 2 {
			continue
		}
		if len(members) > maxSize {
			for _, piece := range splitOversized(members, adj, maxSize) {
				if len(piece) < 2 {
					continue
				}
				c := buildOne(g.Category, piece, adj, round)
				c.FromOversized = true
				out = append(out, c)
			}
			continue
		}
		out = append(out, buildOne(g.Category, members, adj, round))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func buildOne(category string, members []string, adj map[string]map[string]float64, round int) model.Community {
	sorted := append([]string(nil), members...)
	sort.Strings(sorted)

	var edges []model.SimilarityEdge
	inSet := make(map[string]bool, len(sorted))
	for _, m := range sorted {
		inSet[m] = true
	}
	var weightSum float64
	for _, a := range sorted {
		for b, w := range adj[a] {
			if a < b && inSet[b] {
				edges = append(edges, model.NewSimilarityEdge(a, b, w))
				weightSum += w
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})

	n := len(sorted)
	possible := float64(n*(n-1)) / 2
	avgSim := 0.0
	if len(edges) > 0 {
		avgSim = weightSum / float64(len(edges))
	}
	density := 0.0
	if possible > 0 {
		density = float64(len(edges)) / possible
	}

	c := model.Community{
		ID:            fmt.Sprintf("%s:r%d:%s", category, round, sorted[0]),
		Category:      category,
		Round:         round,
		Members:       sorted,
		Edges:         edges,
		AvgSimilarity: avgSim,
		Density:       density,
	}
	c.Priority = weightAvgSim*avgSim + weightDensity*density + weightSize*SizeScore(n)
	return c
}

// SizeScore peaks at 1.0 for communities of 3-10 members and decays
// monotonically on both sides, bounded to [0,1]: a pair scores 0.5 and
// the score reaches 0 again at 50 members.
func SizeScore(n int) float64 {
	switch {
	case n < 2:
		return 0
	case n < sizePeakLow:
		return float64(n-1) / float64(sizePeakLow-1)
	case n <= sizePeakHigh:
		return 1
	default:
		s := 1 - float64(n-sizePeakHigh)/40.0
		if s < 0 {
			return 0
		}
		return s
	}
}

// splitOversized partitions an oversized cell by Kruskal-style clustering
// capped at maxSize: intra edges are replayed strongest-first and two
// clusters only join while the union still fits. The weakest connectivity
// is what ends up cut.
func splitOversized(members []string, adj map[string]map[string]float64, maxSize int) [][]string {
	inSet := make(map[string]bool, len(members))
	for _, m := range members {
		inSet[m] = true
	}

	var edges []model.SimilarityEdge
	for _, a := range members {
		for b, w := range adj[a] {
			if a < b && inSet[b] {
				edges = append(edges, model.NewSimilarityEdge(a, b, w))
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Weight != edges[j].Weight {
			return edges[i].Weight > edges[j].Weight
		}
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})

	parent := make(map[string]string, len(members))
	size := make(map[string]int, len(members))
	for _, m := range members {
		parent[m] = m
		size[m] = 1
	}
	var find func(x string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	for _, e := range edges {
		ra, rb := find(e.A), find(e.B)
		if ra == rb {
			continue
		}
		if size[ra]+size[rb] > maxSize {
			continue
		}
		if rb < ra {
			ra, rb = rb, ra
		}
		parent[rb] = ra
		size[ra] += size[rb]
	}

	groups := make(map[string][]string)
	for _, m := range members {
		r := find(m)
		groups[r] = append(groups[r], m)
	}
	var parts [][]string
	for _, g := range groups {
		sort.Strings(g)
		parts = append(parts, g)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i][0] < parts[j][0] })
	return parts
}
