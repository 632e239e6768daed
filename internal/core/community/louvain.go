package community

import (
	"math/rand"
	"sort"

	"github.com/curatorhq/curator/internal/core/graphbuild"
)

// LouvainDetector runs the Louvain modularity optimization: repeated local
// moving of nodes to the neighboring community with the best modularity
// gain, followed by graph aggregation, until a pass yields no improvement.
// Node visit order is shuffled with the pinned seed, so identical graph +
// seed gives an identical partition.
type LouvainDetector struct {
	Seed      int64
	MaxPasses int
}

func NewLouvainDetector(seed int64) *LouvainDetector {
	return &LouvainDetector{Seed: seed, MaxPasses: 10}
}

func (d *LouvainDetector) Detect(g *graphbuild.Graph) ([][]string, error) {
	if len(g.Nodes) == 0 {
		return nil, nil
	}

	idx := make(map[string]int, len(g.Nodes))
	for i, id := range g.Nodes {
		idx[id] = i
	}

	// Working graph: adjacency as weighted neighbor maps, plus self-loop
	// weights accumulated during aggregation.
	n := len(g.Nodes)
	adj := make([]map[int]float64, n)
	selfLoop := make([]float64, n)
	for i := range adj {
		adj[i] = make(map[int]float64)
	}
	for _, e := range g.Edges {
		a, okA := idx[e.A]
		b, okB := idx[e.B]
		if !okA || !okB || a == b {
			continue
		}
		adj[a][b] += e.Weight
		adj[b][a] += e.Weight
	}

	// membership[i] is the original node's community through all passes.
	membership := make([]int, n)
	for i := range membership {
		membership[i] = i
	}

	rng := rand.New(rand.NewSource(d.Seed))
	maxPasses := d.MaxPasses
	if maxPasses <= 0 {
		maxPasses = 10
	}

	for pass := 0; pass < maxPasses; pass++ {
		comm, improved := localMove(adj, selfLoop, rng)
		if !improved {
			break
		}

		// Renumber communities densely.
		renum := make(map[int]int)
		for _, c := range comm {
			if _, ok := renum[c]; !ok {
				renum[c] = len(renum)
			}
		}
		for i := range membership {
			membership[i] = renum[comm[membership[i]]]
		}
		if len(renum) == len(comm) {
			break // nothing actually coalesced
		}

		// Aggregate: communities become super-nodes.
		nc := len(renum)
		newAdj := make([]map[int]float64, nc)
		newSelf := make([]float64, nc)
		for i := range newAdj {
			newAdj[i] = make(map[int]float64)
		}
		for u := range adj {
			cu := renum[comm[u]]
			newSelf[cu] += selfLoop[u]
			for v, w := range adj[u] {
				if u > v {
					continue // count each undirected edge once
				}
				cv := renum[comm[v]]
				if cu == cv {
					newSelf[cu] += w
				} else {
					newAdj[cu][cv] += w
					newAdj[cv][cu] += w
				}
			}
		}
		adj = newAdj
		selfLoop = newSelf
	}

	groups := make(map[int][]string)
	for i, id := range g.Nodes {
		c := membership[i]
		groups[c] = append(groups[c], id)
	}

	var parts [][]string
	for _, members := range groups {
		sort.Strings(members)
		parts = append(parts, members)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i][0] < parts[j][0] })
	return parts, nil
}

// localMove is one Louvain phase: greedily reassign nodes to the
// neighboring community with the highest positive modularity gain until a
// full sweep makes no change. Returns the community assignment and whether
// anything moved.
func localMove(adj []map[int]float64, selfLoop []float64, rng *rand.Rand) ([]int, bool) {
	n := len(adj)
	comm := make([]int, n)
	degree := make([]float64, n)
	var m2 float64 // 2m, twice the total edge weight
	for i := range adj {
		comm[i] = i
		for _, w := range adj[i] {
			degree[i] += w
		}
		degree[i] += 2 * selfLoop[i]
		m2 += degree[i]
	}
	if m2 == 0 {
		return comm, false
	}

	commTotal := append([]float64(nil), degree...)

	order := rng.Perm(n)
	improvedEver := false
	for sweep := 0; sweep < 100; sweep++ {
		moved := 0
		for _, u := range order {
			cu := comm[u]

			commTotal[cu] -= degree[u]

			// Weight from u into each neighboring community.
			linkTo := map[int]float64{cu: 0}
			for v, w := range adj[u] {
				linkTo[comm[v]] += w
			}

			bestComm := cu
			bestGain := linkTo[cu] - commTotal[cu]*degree[u]/m2
			cands := make([]int, 0, len(linkTo))
			for c := range linkTo {
				cands = append(cands, c)
			}
			sort.Ints(cands) // deterministic iteration
			for _, c := range cands {
				if c == cu {
					continue
				}
				gain := linkTo[c] - commTotal[c]*degree[u]/m2
				if gain > bestGain {
					bestGain = gain
					bestComm = c
				}
			}

			commTotal[bestComm] += degree[u]
			if bestComm != cu {
				comm[u] = bestComm
				moved++
			}
		}
		if moved > 0 {
			improvedEver = true
		} else {
			break
		}
	}
	return comm, improvedEver
}
