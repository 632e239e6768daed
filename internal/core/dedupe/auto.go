package dedupe

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/curatorhq/curator/internal/core/graphbuild"
	"github.com/curatorhq/curator/internal/core/model"
	"github.com/curatorhq/curator/internal/store"
)

// AutoPass resolves near-certain duplicate pairs without agent
// involvement. It runs before any LLM call and again after graph rebuilds.
type AutoPass struct {
	Store     store.EntryStore
	Threshold float64
	Log       *zap.SugaredLogger
}

// AutoResult reports what the pass did. Merged maps each absorbed entry to
// its survivor; running the pass a second time over the same storage state
// yields an empty result.
type AutoResult struct {
	Merged    map[string]string
	Records   []model.ProvenanceRecord
	Decisions []model.Decision
}

// Run scans the graph for edges at or above the threshold and merges each
// such pair, keeping the earlier-created side (ties broken by lower id).
// Already-consumed entries are skipped, which is what makes the pass
// idempotent: a merged entry is no longer active, so a rerun on the same
// state finds nothing to do.
func (p *AutoPass) Run(ctx context.Context, g *graphbuild.Graph, round int) (*AutoResult, error) {
	edges := make([]model.SimilarityEdge, 0)
	for _, e := range g.Edges {
		if e.Weight >= p.Threshold {
			edges = append(edges, e)
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

	res := &AutoResult{Merged: make(map[string]string)}
	consumed := make(map[string]bool)

	for _, e := range edges {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if consumed[e.A] || consumed[e.B] {
			continue
		}

		a, err := p.Store.Get(ctx, e.A)
		if err != nil {
			return res, fmt.Errorf("load %s: %w", e.A, err)
		}
		b, err := p.Store.Get(ctx, e.B)
		if err != nil {
			return res, fmt.Errorf("load %s: %w", e.B, err)
		}
		if a.Status != model.StatusActive || b.Status != model.StatusActive {
			continue
		}

		survivor, merged := pickSurvivor(a, b)
		rec, err := MergeEntries(ctx, p.Store, merged.ID, survivor.ID, model.OpAutoDedup, round)
		if err != nil {
			if err == model.ErrAlreadyMerged || err == model.ErrStatusConflict {
				continue
			}
			return res, err
		}

		dec := model.Decision{
			ID:        uuid.New().String(),
			Category:  g.Category,
			Round:     round,
			Kind:      model.DecisionMergeAll,
			Merges:    []model.MergePair{{Source: merged.ID, Dest: survivor.ID}},
			Rationale: fmt.Sprintf("similarity %.4f at or above auto-dedup threshold %.4f", e.Weight, p.Threshold),
			CreatedAt: time.Now().UTC(),
		}
		if err := p.Store.RecordDecision(ctx, dec); err != nil {
			return res, fmt.Errorf("record decision: %w", err)
		}

		res.Merged[merged.ID] = survivor.ID
		res.Records = append(res.Records, rec)
		res.Decisions = append(res.Decisions, dec)
		consumed[merged.ID] = true

		if p.Log != nil {
			p.Log.Infow("auto-dedup merge",
				"category", g.Category, "kept", survivor.ID, "merged", merged.ID, "weight", e.Weight)
		}
	}
	return res, nil
}

// pickSurvivor keeps the earlier-created entry; equal timestamps fall back
// to the lower id so the outcome never depends on map order.
func pickSurvivor(a, b *model.Entry) (survivor, merged *model.Entry) {
	if a.CreatedAt.Before(b.CreatedAt) {
		return a, b
	}
	if b.CreatedAt.Before(a.CreatedAt) {
		return b, a
	}
	if a.ID < b.ID {
		return a, b
	}
	return b, a
}
