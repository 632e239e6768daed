package community

import (
	"github.com/curatorhq/curator/internal/core/graphbuild"
)

// Detector partitions one category's graph into non-overlapping member
// sets. The partition covers every node, singletons included; filtering
// them out of agent processing happens at the ranking stage.
//
// Detection is not required to be bit-reproducible across differing
// graphs, but must be reproducible given an identical graph and seed.
type Detector interface {
	Detect(g *graphbuild.Graph) ([][]string, error)
}

// NewDetector selects the detection algorithm. "lpa" gives the simpler
// label-propagation fallback; anything else gets the modularity-optimizing
// default.
func NewDetector(algorithm string, seed int64) Detector {
	if algorithm == "lpa" {
		return NewLabelPropagationDetector()
	}
	return NewLouvainDetector(seed)
}
