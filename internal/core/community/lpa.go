package community

import (
	"sort"

	"github.com/curatorhq/curator/internal/core/graphbuild"
)

// LabelPropagationDetector is the simpler fallback partitioner: each node
// repeatedly adopts the label carrying the most edge weight among its
// neighbors. Tie-breaking picks the lexicographically largest label, which
// keeps the result stable across runs on the same graph.
type LabelPropagationDetector struct {
	MaxIterations int
}

func NewLabelPropagationDetector() *LabelPropagationDetector {
	return &LabelPropagationDetector{MaxIterations: 20}
}

func (d *LabelPropagationDetector) Detect(g *graphbuild.Graph) ([][]string, error) {
	if len(g.Nodes) == 0 {
		return nil, nil
	}

	adj := g.Adjacency()

	labels := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		labels[n] = n
	}

	for iter := 0; iter < d.MaxIterations; iter++ {
		changeCount := 0

		for _, u := range g.Nodes {
			neighbors := adj[u]
			if len(neighbors) == 0 {
				continue
			}

			labelWeight := make(map[string]float64)
			maxWeight := 0.0
			for v, w := range neighbors {
				label := labels[v]
				labelWeight[label] += w
				if labelWeight[label] > maxWeight {
					maxWeight = labelWeight[label]
				}
			}

			var candidates []string
			for label, w := range labelWeight {
				if w == maxWeight {
					candidates = append(candidates, label)
				}
			}
			sort.Strings(candidates)
			bestLabel := candidates[len(candidates)-1]

			if labels[u] != bestLabel {
				labels[u] = bestLabel
				changeCount++
			}
		}

		if changeCount == 0 {
			break
		}
	}

	groups := make(map[string][]string)
	for _, n := range g.Nodes {
		groups[labels[n]] = append(groups[labels[n]], n)
	}

	var parts [][]string
	for _, members := range groups {
		sort.Strings(members)
		parts = append(parts, members)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i][0] < parts[j][0] })
	return parts, nil
}
