package atomize

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/curatorhq/curator/internal/core/common"
	"github.com/curatorhq/curator/internal/core/model"
	"github.com/curatorhq/curator/internal/llm"
	"github.com/curatorhq/curator/internal/store"
)

// Atomizer is the pre-pass that splits non-atomic entries before the main
// loop's first graph build. A compound entry's embedding is a poor basis
// for merge decisions, so splitting happens first, exactly once per entry.
type Atomizer struct {
	LLM    llm.LLMClient
	Store  store.EntryStore
	Prompt string // optional template override
	Log    *zap.SugaredLogger
}

// Stats reports what one pre-pass did.
type Stats struct {
	Classified int
	Splits     int
	Children   int
	Failed     int
}

const defaultAtomicityPrompt = `A knowledge entry should state exactly one self-contained piece of
knowledge. Classify the entry below.

Title: %s
Body: %s

If it is atomic, respond: {"atomic": true}
If it bundles several independent pieces, respond with 2 to 4 children:
  {"atomic": false, "children": [{"title": "...", "body": "..."}, ...]}
Each child must be self-contained and must only restate content already
present in the original body — never invent new facts. Output only JSON.`

type classification struct {
	Atomic   bool `json:"atomic"`
	Children []struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"children,omitempty"`
}

// Run classifies every active entry not yet checked. Split parents become
// split_origin; children inherit category, section, and author, and start
// with a pending embedding. Per-entry failures are skipped, not fatal.
func (a *Atomizer) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	entries, err := a.Store.List(ctx, store.Filter{Status: model.StatusActive})
	if err != nil {
		return stats, fmt.Errorf("list entries: %w", err)
	}

	for _, e := range entries {
		if e.Atomized {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		cls, err := a.classify(ctx, e)
		if err != nil {
			stats.Failed++
			if a.Log != nil {
				a.Log.Warnw("atomicity classification failed, leaving entry unchecked",
					"entry", e.ID, "err", err)
			}
			continue
		}
		stats.Classified++

		if cls.Atomic || len(cls.Children) == 0 {
			e.Atomized = true
			e.UpdatedAt = time.Now().UTC()
			if err := a.Store.Put(ctx, e); err != nil {
				return stats, fmt.Errorf("mark atomized %s: %w", e.ID, err)
			}
			continue
		}

		if err := a.applySplit(ctx, e, cls); err != nil {
			return stats, err
		}
		stats.Splits++
		stats.Children += len(cls.Children)
	}
	return stats, nil
}

func (a *Atomizer) classify(ctx context.Context, e *model.Entry) (*classification, error) {
	template := a.Prompt
	if template == "" {
		template = defaultAtomicityPrompt
	}
	response, err := a.LLM.Generate(ctx, fmt.Sprintf(template, e.Title, e.Body))
	if err != nil {
		return nil, &model.TransportError{Op: "atomicity classification", Err: err}
	}

	cls, err := common.ParseJSON[classification](response)
	if err != nil {
		return nil, fmt.Errorf("unparseable classification: %w", err)
	}
	if !cls.Atomic {
		if len(cls.Children) < 2 || len(cls.Children) > 4 {
			return nil, fmt.Errorf("split must produce 2-4 children, got %d", len(cls.Children))
		}
		for i, c := range cls.Children {
			if c.Title == "" || c.Body == "" {
				return nil, fmt.Errorf("child %d missing title or body", i)
			}
		}
	}
	return &cls, nil
}

func (a *Atomizer) applySplit(ctx context.Context, parent *model.Entry, cls *classification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// The child writes, the parent retirement, and the provenance record
	// form one logical mutation; a cancellation landing between them would
	// leave orphaned children or a retired parent with no split record.
	ctx = context.WithoutCancel(ctx)

	now := time.Now().UTC()

	childIDs := make([]string, 0, len(cls.Children))
	for _, draft := range cls.Children {
		child := &model.Entry{
			ID:         uuid.New().String(),
			Category:   parent.Category,
			Section:    parent.Section,
			Title:      draft.Title,
			Body:       draft.Body,
			Context:    parent.Context,
			Author:     parent.Author,
			EmbedState: model.EmbedPending,
			Status:     model.StatusActive,
			Atomized:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := a.Store.Put(ctx, child); err != nil {
			return fmt.Errorf("write split child of %s: %w", parent.ID, err)
		}
		childIDs = append(childIDs, child.ID)
	}

	if err := a.Store.TransitionStatus(ctx, parent.ID, model.StatusActive, model.StatusSplitOrigin); err != nil {
		return fmt.Errorf("retire split parent %s: %w", parent.ID, err)
	}
	parent.Status = model.StatusSplitOrigin
	parent.Atomized = true
	parent.UpdatedAt = now
	if err := a.Store.Put(ctx, parent); err != nil {
		return fmt.Errorf("update split parent %s: %w", parent.ID, err)
	}

	rec := model.ProvenanceRecord{
		ID:        uuid.New().String(),
		Op:        model.OpSplit,
		Parents:   []string{parent.ID},
		Children:  childIDs,
		Round:     0,
		CreatedAt: now,
	}
	if err := a.Store.RecordProvenance(ctx, rec); err != nil {
		return fmt.Errorf("record split provenance: %w", err)
	}

	if a.Log != nil {
		a.Log.Infow("split non-atomic entry", "parent", parent.ID, "children", len(childIDs))
	}
	return nil
}
