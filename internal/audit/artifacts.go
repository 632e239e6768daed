package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/curatorhq/curator/internal/core/graphbuild"
	"github.com/curatorhq/curator/internal/core/model"
)

// Artifacts writes per-round snapshots under the run directory. Everything
// goes through an atomic temp-file rename so a crash never leaves a
// half-written JSON file behind.
type Artifacts struct {
	Dir string
}

func NewArtifacts(base, runID string) (*Artifacts, error) {
	dir := filepath.Join(base, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir run dir: %w", err)
	}
	return &Artifacts{Dir: dir}, nil
}

func (a *Artifacts) WriteGraph(round int, g *graphbuild.Graph) error {
	name := fmt.Sprintf("graph-r%d-%s.json", round, sanitizeName(g.Category))
	return writeJSONAtomic(filepath.Join(a.Dir, name), g)
}

func (a *Artifacts) WriteCommunities(round int, comms []model.Community) error {
	name := fmt.Sprintf("communities-r%d.json", round)
	return writeJSONAtomic(filepath.Join(a.Dir, name), comms)
}

func (a *Artifacts) WriteCheckpoint(state *model.RunState) error {
	return writeJSONAtomic(filepath.Join(a.Dir, "checkpoint.json"), state)
}

func ReadCheckpoint(base, runID string) (*model.RunState, error) {
	data, err := os.ReadFile(filepath.Join(base, runID, "checkpoint.json"))
	if err != nil {
		return nil, err
	}
	var state model.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("corrupt checkpoint: %w", err)
	}
	return &state, nil
}

func (a *Artifacts) WriteSummary(sum *model.RunSummary) error {
	if err := writeJSONAtomic(filepath.Join(a.Dir, "summary.json"), sum); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(a.Dir, "summary.txt"), []byte(RenderSummary(sum)))
}

// WriteMutations dumps the pending writes of a dry run so an operator can
// inspect exactly what a real run would have changed.
func (a *Artifacts) WriteMutations(v any) error {
	return writeJSONAtomic(filepath.Join(a.Dir, "dry-run-mutations.json"), v)
}

// RenderSummary formats a run summary for humans. The JSON twin next to it
// carries the same data for machines.
func RenderSummary(sum *model.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", sum.RunID)
	fmt.Fprintf(&b, "started  %s\n", sum.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "finished %s\n", sum.FinishedAt.Format(time.RFC3339))
	if sum.DryRun {
		b.WriteString("mode     dry-run (no writes applied)\n")
	}
	switch {
	case sum.Aborted:
		fmt.Fprintf(&b, "aborted at round %d: %s\n", sum.Rounds, sum.AbortReason)
	case sum.Converged:
		fmt.Fprintf(&b, "converged after %d round(s)\n", sum.Rounds)
	default:
		fmt.Fprintf(&b, "stopped at round cap (%d rounds)\n", sum.Rounds)
	}
	fmt.Fprintf(&b, "entries       %d -> %d\n", sum.StartingCount, sum.RemainingCount)
	fmt.Fprintf(&b, "auto merges   %d\n", sum.AutoMerges)
	fmt.Fprintf(&b, "agent merges  %d\n", sum.AgentMerges)
	fmt.Fprintf(&b, "splits        %d\n", sum.Splits)
	fmt.Fprintf(&b, "kept separate %d\n", sum.KeepSeparate)
	fmt.Fprintf(&b, "manual review %d\n", len(sum.ManualReview))
	if len(sum.DegradedUnits) > 0 {
		fmt.Fprintf(&b, "degraded      %s\n", strings.Join(sum.DegradedUnits, ", "))
	}

	if len(sum.Deltas) > 0 {
		b.WriteString("\nper round:\n")
		for _, d := range sum.Deltas {
			fmt.Fprintf(&b, "  r%d: communities=%d merges=%d manual=%d pending %d -> %d\n",
				d.Round, d.CommunitiesSeen, d.Merges, d.ManualReview, d.PendingBefore, d.PendingAfter)
		}
	}
	if len(sum.Labels) > 0 {
		b.WriteString("\ncommunity labels:\n")
		keys := make([]string, 0, len(sum.Labels))
		for k := range sum.Labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, sum.Labels[k])
		}
	}
	return b.String()
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
