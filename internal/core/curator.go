// Package core runs the curation engine: it wires graph construction,
// community detection, auto-dedup, and the agent-backed decision loop into
// a round-based state machine that terminates on convergence or the round
// cap.
package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/curatorhq/curator/internal/audit"
	"github.com/curatorhq/curator/internal/config"
	"github.com/curatorhq/curator/internal/core/atomize"
	"github.com/curatorhq/curator/internal/core/community"
	"github.com/curatorhq/curator/internal/core/dedupe"
	"github.com/curatorhq/curator/internal/core/graphbuild"
	"github.com/curatorhq/curator/internal/core/model"
	"github.com/curatorhq/curator/internal/core/summary"
	"github.com/curatorhq/curator/internal/llm"
	"github.com/curatorhq/curator/internal/store"
)

// VectorSink is the optional store capability the engine uses to refresh
// pending embeddings for split children before a graph build.
type VectorSink interface {
	SetVector(ctx context.Context, id string, vec []float32) error
}

// Deps are the external collaborators of one engine instance. Embedder and
// Reranker are optional; without an embedder, entries with a pending
// embedding fail run validation instead of being refreshed in place.
type Deps struct {
	Store     store.EntryStore
	Neighbors graphbuild.NeighborSource
	Agent     llm.LLMClient
	Embedder  llm.EmbedderClient
	Reranker  llm.RerankerClient
	Log       *zap.SugaredLogger
}

// Curator drives one curation run over the entry store.
type Curator struct {
	cfg       *config.Config
	store     store.EntryStore
	vectors   VectorSink // nil when the store cannot accept embeddings
	neighbors graphbuild.NeighborSource
	agent     llm.LLMClient
	embedder  llm.EmbedderClient
	reranker  llm.RerankerClient
	detector  community.Detector
	log       *zap.SugaredLogger
}

func New(cfg *config.Config, d Deps) *Curator {
	log := d.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	vs, _ := d.Store.(VectorSink)
	return &Curator{
		cfg:       cfg,
		store:     d.Store,
		vectors:   vs,
		neighbors: d.Neighbors,
		agent:     d.Agent,
		embedder:  d.Embedder,
		reranker:  d.Reranker,
		detector:  community.NewDetector(cfg.Engine.Detector, cfg.Engine.Seed),
		log:       log,
	}
}

// WithConfig returns a copy of the curator bound to an alternate
// configuration, sharing every collaborator with the original.
func (c *Curator) WithConfig(cfg *config.Config) *Curator {
	clone := *c
	clone.cfg = cfg
	clone.detector = community.NewDetector(cfg.Engine.Detector, cfg.Engine.Seed)
	return &clone
}

// Run executes the full round loop. A non-empty runID resumes from that
// run's checkpoint when one exists, or starts a fresh run under that id;
// an empty id gets a generated one. The returned summary is non-nil even
// on abort, so callers always have the diagnostic report.
func (c *Curator) Run(ctx context.Context, runID string) (*model.RunSummary, error) {
	lock, err := AcquireLock(c.cfg.Artifacts.Dir)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	state := &model.RunState{
		RunID:     runID,
		DryRun:    c.cfg.Engine.DryRun,
		StartedAt: time.Now().UTC(),
	}
	if runID == "" {
		state.RunID = uuid.New().String()
	} else if resumed, err := audit.ReadCheckpoint(c.cfg.Artifacts.Dir, runID); err == nil {
		state = resumed
		c.log.Infow("resuming run", "run", runID, "round", state.Round)
	} else if !os.IsNotExist(err) {
		return nil, &model.InputValidationError{Reason: fmt.Sprintf("resume %s: %v", runID, err)}
	}

	artifacts, err := audit.NewArtifacts(c.cfg.Artifacts.Dir, state.RunID)
	if err != nil {
		return nil, err
	}
	alog, err := audit.Open(artifacts.Dir)
	if err != nil {
		return nil, err
	}
	defer alog.Close()

	st := c.store
	var overlay *store.Overlay
	if c.cfg.Engine.DryRun {
		overlay = store.NewOverlay(c.store)
		st = overlay
	}
	st = &audit.TeeStore{EntryStore: st, Log: alog}

	sum := &model.RunSummary{
		RunID:     state.RunID,
		DryRun:    state.DryRun,
		StartedAt: state.StartedAt,
	}

	run := &runContext{
		Curator:   c,
		store:     st,
		state:     state,
		summary:   sum,
		artifacts: artifacts,
		exclude:   make(map[string]bool),
	}

	if err := run.execute(ctx); err != nil {
		sum.Aborted = true
		sum.AbortReason = err.Error()
		run.finalize(ctx, overlay)
		return sum, err
	}
	run.finalize(ctx, overlay)
	return sum, nil
}

// runContext carries the per-run mutable state so the loop methods do not
// thread six parameters each.
type runContext struct {
	*Curator
	store       store.EntryStore
	state       *model.RunState
	summary     *model.RunSummary
	artifacts   *audit.Artifacts
	exclude     map[string]bool // manual_review members, out of automation for this run
	ranked      []model.Community
	rerankCache *graphbuild.RerankCache
}

func (r *runContext) execute(ctx context.Context) error {
	if err := r.validate(ctx); err != nil {
		return err
	}

	active, err := r.store.List(ctx, store.Filter{Status: model.StatusActive})
	if err != nil {
		return err
	}
	r.summary.StartingCount = len(active)

	if r.state.Round == 0 {
		if err := r.atomicityPass(ctx); err != nil {
			return err
		}
	}

	builder, flushRerank := r.newBuilder()
	defer flushRerank()

	for round := r.state.Round + 1; round <= r.cfg.Engine.MaxRounds && !r.state.Converged; round++ {
		if err := r.round(ctx, builder, round); err != nil {
			return err
		}
		if err := r.artifacts.WriteCheckpoint(r.state); err != nil {
			return err
		}
	}
	return nil
}

// round is one BUILD_GRAPH → RANK → DECIDE → APPLY → CHECK_CONVERGENCE
// cycle. A graph failure aborts the run; per-community failures degrade to
// manual_review and the round carries on.
func (r *runContext) round(ctx context.Context, builder *graphbuild.Builder, round int) error {
	graphs, pendingBefore, err := r.buildGraphs(ctx, builder)
	if err != nil {
		return fmt.Errorf("graph rebuild in round %d: %w", round, err)
	}

	// The first build blends only pairs already in the rerank cache. Warm
	// the cache from the surviving edges, then rebuild; neighbor lists are
	// cached, so the second build costs no index queries.
	if r.rerankCache != nil && r.reranker != nil {
		if err := r.warmRerank(ctx, graphs); err != nil {
			return err
		}
		graphs, _, err = r.buildGraphs(ctx, builder)
		if err != nil {
			return fmt.Errorf("graph rebuild in round %d: %w", round, err)
		}
	}

	categories := sortedKeys(graphs)

	auto := &dedupe.AutoPass{Store: r.store, Threshold: r.cfg.Engine.AutoDedupThreshold, Log: r.log}
	removed := make(map[string]bool)
	for _, cat := range categories {
		res, err := auto.Run(ctx, graphs[cat], round)
		if err != nil {
			return fmt.Errorf("auto-dedup in round %d: %w", round, err)
		}
		r.summary.AutoMerges += len(res.Merged)
		for id := range res.Merged {
			removed[id] = true
		}
	}

	r.ranked = r.ranked[:0]
	for _, cat := range categories {
		g := graphs[cat].Without(removed)
		if err := r.artifacts.WriteGraph(round, g); err != nil {
			return err
		}
		parts, err := r.detector.Detect(g)
		if err != nil {
			return fmt.Errorf("community detection for %s: %w", cat, err)
		}
		r.ranked = append(r.ranked, community.BuildRanked(g, parts, round, r.cfg.Engine.MaxCommunitySize)...)
	}
	sort.SliceStable(r.ranked, func(i, j int) bool {
		if r.ranked[i].Priority != r.ranked[j].Priority {
			return r.ranked[i].Priority > r.ranked[j].Priority
		}
		return r.ranked[i].ID < r.ranked[j].ID
	})
	if err := r.artifacts.WriteCommunities(round, r.ranked); err != nil {
		return err
	}

	decisions, degraded, err := r.decide(ctx, round)
	if err != nil {
		return err
	}

	delta := model.RoundDelta{
		Round:           round,
		PendingBefore:   pendingBefore,
		CommunitiesSeen: len(r.ranked),
		Degraded:        degraded,
	}
	if err := r.apply(ctx, decisions, round, &delta); err != nil {
		return err
	}

	pendingAfter, err := r.countPending(ctx)
	if err != nil {
		return err
	}
	delta.PendingAfter = pendingAfter
	delta.PendingImprove = relImprove(pendingBefore, pendingAfter)
	delta.CommunityImprove = relImprove(r.state.CommunityCount, len(r.ranked))

	r.state.Round = round
	r.state.PendingCount = pendingAfter
	r.state.CommunityCount = len(r.ranked)
	r.state.Deltas = append(r.state.Deltas, delta)

	threshold := r.cfg.Engine.ImprovementThreshold
	if delta.PendingImprove < threshold && delta.CommunityImprove < threshold {
		r.state.LowImproveStreak++
	} else {
		r.state.LowImproveStreak = 0
	}
	if len(r.ranked) == 0 || r.state.LowImproveStreak >= 2 {
		r.state.Converged = true
	}

	r.log.Infow("round complete",
		"round", round,
		"communities", len(r.ranked),
		"merges", delta.Merges,
		"manual_review", delta.ManualReview,
		"pending", pendingAfter,
		"converged", r.state.Converged)
	return nil
}

// buildGraphs rebuilds one graph per category from current storage state.
// Categories are independent partitions, so builds run concurrently.
func (r *runContext) buildGraphs(ctx context.Context, builder *graphbuild.Builder) (map[string]*graphbuild.Graph, int, error) {
	categories, err := r.store.Categories(ctx)
	if err != nil {
		return nil, 0, err
	}
	sort.Strings(categories)

	nodesByCat := make(map[string][]string, len(categories))
	pending := 0
	for _, cat := range categories {
		entries, err := r.store.List(ctx, store.Filter{Category: cat, Status: model.StatusActive})
		if err != nil {
			return nil, 0, err
		}
		for _, e := range entries {
			if !e.Curatable() || r.exclude[e.ID] {
				continue
			}
			nodesByCat[cat] = append(nodesByCat[cat], e.ID)
			pending++
		}
	}

	var mu sync.Mutex
	graphs := make(map[string]*graphbuild.Graph, len(categories))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.cfg.Engine.Concurrency)
	for _, cat := range categories {
		nodes := nodesByCat[cat]
		if len(nodes) < 2 {
			continue
		}
		cat := cat
		eg.Go(func() error {
			g, err := builder.Build(gctx, cat, nodes)
			if err != nil {
				return err
			}
			mu.Lock()
			graphs[cat] = g
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, 0, err
	}
	return graphs, pending, nil
}

// decide issues agent calls for the ranked communities, bounded by the
// configured concurrency. Transport failures that survive the client's
// retries degrade the single community to manual_review.
func (r *runContext) decide(ctx context.Context, round int) ([]model.Decision, int, error) {
	decider := dedupe.NewDecider(r.agent, r.cfg.Prompts.Decision, r.log)
	decisions := make([]model.Decision, len(r.ranked))
	degradedAt := make([]bool, len(r.ranked))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.cfg.Engine.Concurrency)
	for i := range r.ranked {
		i := i
		eg.Go(func() error {
			com := &r.ranked[i]
			entries, err := r.loadMembers(gctx, com)
			if err != nil {
				return err
			}
			dec, err := decider.Decide(gctx, com, entries)
			if err != nil {
				var terr *model.TransportError
				if !errors.As(err, &terr) {
					return err
				}
				r.log.Warnw("degrading community to manual_review", "community", com.ID, "err", err)
				degradedAt[i] = true
				dec = model.Decision{
					ID:          uuid.New().String(),
					CommunityID: com.ID,
					Category:    com.Category,
					Round:       round,
					Kind:        model.DecisionManualReview,
					Rationale:   err.Error(),
					CreatedAt:   time.Now().UTC(),
				}
			}
			decisions[i] = dec
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, 0, err
	}

	degraded := 0
	for i := range degradedAt {
		if degradedAt[i] {
			degraded++
			r.summary.DegradedUnits = append(r.summary.DegradedUnits, r.ranked[i].ID)
		}
	}
	return decisions, degraded, nil
}

// apply commits decisions strictly in priority order. Merge pairs within a
// decision apply in (dest, source) order; a pair whose endpoint was
// already consumed by an earlier merge is rejected and logged, never
// applied. Cancellation is honored between decisions, so no entry is left
// half-merged.
func (r *runContext) apply(ctx context.Context, decisions []model.Decision, round int, delta *model.RoundDelta) error {
	for i, dec := range decisions {
		if err := ctx.Err(); err != nil {
			return err
		}
		com := &r.ranked[i]

		switch dec.Kind {
		case model.DecisionMergeAll, model.DecisionMergeSubset:
			pairs := append([]model.MergePair(nil), dec.Merges...)
			sort.Slice(pairs, func(a, b int) bool {
				if pairs[a].Dest != pairs[b].Dest {
					return pairs[a].Dest < pairs[b].Dest
				}
				return pairs[a].Source < pairs[b].Source
			})
			for _, p := range pairs {
				_, err := dedupe.MergeEntries(ctx, r.store, p.Source, p.Dest, model.OpMerge, round)
				if errors.Is(err, model.ErrAlreadyMerged) || errors.Is(err, model.ErrStatusConflict) {
					r.log.Warnw("rejected overlapping merge", "source", p.Source, "dest", p.Dest, "err", err)
					continue
				}
				if err != nil {
					return err
				}
				r.summary.AgentMerges++
				delta.Merges++
			}
		case model.DecisionKeepSeparate:
			r.summary.KeepSeparate++
			delta.KeepSeparate++
		case model.DecisionManualReview:
			delta.ManualReview++
			for _, id := range com.Members {
				if !r.exclude[id] {
					r.exclude[id] = true
					r.summary.ManualReview = append(r.summary.ManualReview, id)
				}
			}
		}

		if err := r.store.RecordDecision(ctx, dec); err != nil {
			return err
		}
	}
	sort.Strings(r.summary.ManualReview)
	return nil
}

// validate is the INIT state: storage must be reachable and no curatable
// entry may be stuck with an unresolved embedding.
func (r *runContext) validate(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return &model.InputValidationError{Reason: fmt.Sprintf("entry store unreachable: %v", err)}
	}
	if err := r.refreshEmbeddings(ctx); err != nil {
		return err
	}
	for _, state := range []model.EmbedState{model.EmbedPending, model.EmbedStale} {
		stuck, err := r.store.List(ctx, store.Filter{Status: model.StatusActive, EmbedState: state})
		if err != nil {
			return err
		}
		if len(stuck) > 0 {
			return &model.InputValidationError{
				Reason: fmt.Sprintf("%d active entries with %s embeddings and no embedder configured", len(stuck), state),
			}
		}
	}
	return nil
}

func (r *runContext) atomicityPass(ctx context.Context) error {
	at := &atomize.Atomizer{LLM: r.agent, Store: r.store, Prompt: r.cfg.Prompts.Atomicity, Log: r.log}
	stats, err := at.Run(ctx)
	if err != nil {
		return fmt.Errorf("atomicity pre-pass: %w", err)
	}
	r.summary.Splits = stats.Splits
	r.log.Infow("atomicity pre-pass complete",
		"classified", stats.Classified, "splits", stats.Splits, "children", stats.Children, "failed", stats.Failed)
	if stats.Children > 0 {
		return r.refreshEmbeddings(ctx)
	}
	return nil
}

// refreshEmbeddings embeds pending or stale active entries when both an
// embedder and a vector-capable store are available. In dry-run mode
// vectors are left alone so the real store is never written.
func (r *runContext) refreshEmbeddings(ctx context.Context) error {
	if r.embedder == nil || r.vectors == nil || r.cfg.Engine.DryRun {
		return nil
	}
	for _, state := range []model.EmbedState{model.EmbedPending, model.EmbedStale} {
		entries, err := r.store.List(ctx, store.Filter{Status: model.StatusActive, EmbedState: state})
		if err != nil {
			return err
		}
		for _, e := range entries {
			vec, err := r.embedder.Embed(ctx, e.Title+"\n"+e.Body)
			if err != nil {
				return &model.TransportError{Op: fmt.Sprintf("embed entry %s", e.ID), Err: err}
			}
			if err := r.vectors.SetVector(ctx, e.ID, vec); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *runContext) newBuilder() (*graphbuild.Builder, func()) {
	builder := &graphbuild.Builder{
		Neighbors:     r.neighbors,
		K:             r.cfg.Engine.NeighborK,
		MinSimilarity: r.cfg.Engine.MinSimilarity,
		EmbedWeight:   r.cfg.Engine.EmbedWeight,
		RerankWeight:  r.cfg.Engine.RerankWeight,
		Log:           r.log,
	}
	if r.cfg.Cache.Dir != "" {
		builder.Cache = &graphbuild.NeighborCache{
			Dir:          r.cfg.Cache.Dir,
			Model:        r.cfg.LLM.EmbeddingModel,
			IndexVersion: r.cfg.Cache.IndexVersion,
			Refresh:      r.cfg.Cache.Refresh,
		}
	}

	flush := func() {}
	if r.reranker != nil && r.cfg.Cache.RerankModel != "" {
		cache, err := graphbuild.OpenRerankCache(r.cfg.Cache.Dir, r.cfg.Cache.RerankModel)
		if err != nil {
			// A missing rerank cache degrades to embed-only scoring.
			r.log.Warnw("rerank cache unavailable, using embed scores only", "err", err)
			return builder, flush
		}
		builder.Rerank = cache
		r.rerankCache = cache
		flush = func() {
			if err := cache.Flush(); err != nil {
				r.log.Warnw("rerank cache flush failed", "err", err)
			}
		}
	}
	return builder, flush
}

// warmRerank scores every materialized edge pair through the reranker,
// skipping pairs already cached. Entry text failures leave the pair
// embed-only.
func (r *runContext) warmRerank(ctx context.Context, graphs map[string]*graphbuild.Graph) error {
	var pairs [][2]string
	for _, g := range graphs {
		for _, e := range g.Edges {
			pairs = append(pairs, [2]string{e.A, e.B})
		}
	}
	if len(pairs) == 0 {
		return nil
	}
	text := func(id string) string {
		e, err := r.store.Get(ctx, id)
		if err != nil {
			return ""
		}
		return e.Title + "\n" + e.Body
	}
	return r.rerankCache.Warm(ctx, r.reranker, pairs, text)
}

func (r *runContext) countPending(ctx context.Context) (int, error) {
	entries, err := r.store.List(ctx, store.Filter{Status: model.StatusActive})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.Curatable() && !r.exclude[e.ID] {
			n++
		}
	}
	return n, nil
}

// finalize closes out the summary, labels surviving communities, and
// writes the end-of-run artifacts. It never fails the run: artifact
// problems at this point are logged and the summary is still returned.
func (r *runContext) finalize(ctx context.Context, overlay *store.Overlay) {
	r.summary.Rounds = r.state.Round
	r.summary.Converged = r.state.Converged
	r.summary.Deltas = r.state.Deltas
	r.summary.FinishedAt = time.Now().UTC()

	if remaining, err := r.countPending(ctx); err == nil {
		r.summary.RemainingCount = remaining
	}

	if !r.summary.Aborted && len(r.ranked) > 0 {
		labeler := &summary.Labeler{LLM: r.agent, Prompt: r.cfg.Prompts.CommunityName, Log: r.log}
		labels := make(map[string]string, len(r.ranked))
		for i := range r.ranked {
			com := &r.ranked[i]
			entries, err := r.loadMembers(ctx, com)
			if err != nil {
				continue
			}
			name, err := labeler.Label(ctx, com, entries)
			if err != nil {
				r.log.Warnw("community labeling failed", "community", com.ID, "err", err)
				continue
			}
			labels[com.ID] = name
		}
		if len(labels) > 0 {
			r.summary.Labels = labels
		}
	}

	if overlay != nil {
		if err := r.artifacts.WriteMutations(overlay.Mutations()); err != nil {
			r.log.Warnw("dry-run mutation dump failed", "err", err)
		}
	}
	if err := r.artifacts.WriteCheckpoint(r.state); err != nil {
		r.log.Warnw("checkpoint write failed", "err", err)
	}
	if err := r.artifacts.WriteSummary(r.summary); err != nil {
		r.log.Warnw("summary write failed", "err", err)
	}
}

func (r *runContext) loadMembers(ctx context.Context, com *model.Community) (map[string]*model.Entry, error) {
	entries := make(map[string]*model.Entry, len(com.Members))
	for _, id := range com.Members {
		e, err := r.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		entries[id] = e
	}
	return entries, nil
}

// relImprove is the relative shrink of a count between rounds, clamped to
// [0,1]. A count that grew (splits can do that) reports zero improvement.
func relImprove(before, after int) float64 {
	if before <= 0 || after >= before {
		return 0
	}
	return float64(before-after) / float64(before)
}

func sortedKeys(m map[string]*graphbuild.Graph) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
