package dedupe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/curatorhq/curator/internal/core/common"
	"github.com/curatorhq/curator/internal/core/model"
	"github.com/curatorhq/curator/internal/llm"
)

// Decider asks the LLM agent what to do with one community. The agent's
// output is untyped; it is validated against the tagged-union decision
// contract, and anything that fails validation maps to manual_review —
// never to a best-effort merge.
type Decider struct {
	LLM    llm.LLMClient
	Prompt string // optional template override; see defaultDecisionPrompt
	Log    *zap.SugaredLogger
}

func NewDecider(llmClient llm.LLMClient, prompt string, log *zap.SugaredLogger) *Decider {
	return &Decider{LLM: llmClient, Prompt: prompt, Log: log}
}

const defaultDecisionPrompt = `You are curating a knowledge base of short %s entries.
The entries below cluster together by semantic similarity. Decide whether
they are duplicates that should be merged.

Category: %s
Round: %d

<ENTRIES>
%s</ENTRIES>

<SIMILARITY EDGES>
%s</SIMILARITY EDGES>

Respond with a single JSON object:
  {"decision": "merge_all"}                                    - every entry states the same knowledge
  {"decision": "merge_subset", "merges": [{"source": "...", "dest": "..."}]} - only the listed pairs are duplicates
  {"decision": "keep_separate"}                                - related but distinct, keep all
  {"decision": "manual_review", "notes": "..."}                - too ambiguous to decide automatically
"source" is absorbed into "dest". Add a short "notes" field explaining the
reasoning. Output only the JSON object.`

type agentResponse struct {
	Decision string            `json:"decision"`
	Merges   []model.MergePair `json:"merges,omitempty"`
	Notes    string            `json:"notes,omitempty"`
}

// Decide produces the decision for one community. Transport failures come
// back as an error (the engine retries/degrades); contract failures are
// absorbed here into a manual_review decision.
func (d *Decider) Decide(ctx context.Context, c *model.Community, entries map[string]*model.Entry) (model.Decision, error) {
	prompt := d.buildPrompt(c, entries)

	response, err := d.LLM.Generate(ctx, prompt)
	if err != nil {
		return model.Decision{}, &model.TransportError{Op: "community decision", Err: err}
	}

	dec := model.Decision{
		ID:          uuid.New().String(),
		CommunityID: c.ID,
		Category:    c.Category,
		Round:       c.Round,
		CreatedAt:   time.Now().UTC(),
	}

	parsed, perr := common.ParseJSON[agentResponse](response)
	if perr == nil {
		perr = validate(&parsed, c, entries)
	}
	if perr != nil {
		cerr := &model.DecisionContractError{CommunityID: c.ID, Reason: perr.Error()}
		if d.Log != nil {
			d.Log.Warnw("agent decision failed contract, recording manual_review",
				"community", c.ID, "reason", perr.Error())
		}
		dec.Kind = model.DecisionManualReview
		dec.Rationale = cerr.Error()
		return dec, nil
	}

	dec.Kind = model.DecisionKind(parsed.Decision)
	dec.Rationale = parsed.Notes
	switch dec.Kind {
	case model.DecisionMergeAll:
		dec.Merges = expandMergeAll(c, entries)
	case model.DecisionMergeSubset:
		dec.Merges = parsed.Merges
	}
	return dec, nil
}

func (d *Decider) buildPrompt(c *model.Community, entries map[string]*model.Entry) string {
	var entryList strings.Builder
	section := ""
	for _, id := range c.Members {
		e, ok := entries[id]
		if !ok {
			continue
		}
		if section == "" {
			section = string(e.Section)
		}
		fmt.Fprintf(&entryList, "- ID: %s | Title: %s | Body: %s\n", e.ID, e.Title, snippet(e.Body, 300))
	}

	var edgeList strings.Builder
	for _, e := range c.Edges {
		fmt.Fprintf(&edgeList, "- %s <-> %s: %.3f\n", e.A, e.B, e.Weight)
	}

	template := d.Prompt
	if template == "" {
		template = defaultDecisionPrompt
	}
	return fmt.Sprintf(template, section, c.Category, c.Round, entryList.String(), edgeList.String())
}

// validate enforces the decision contract: a known kind, and merge pairs
// that stay inside the community with distinct endpoints.
func validate(r *agentResponse, c *model.Community, entries map[string]*model.Entry) error {
	if r.Decision == "" {
		return fmt.Errorf("missing decision field")
	}
	if !model.ValidDecisionKind(r.Decision) {
		return fmt.Errorf("unknown decision %q", r.Decision)
	}
	if model.DecisionKind(r.Decision) == model.DecisionMergeSubset {
		if len(r.Merges) == 0 {
			return fmt.Errorf("merge_subset without merge pairs")
		}
		for _, p := range r.Merges {
			if p.Source == p.Dest {
				return fmt.Errorf("merge pair with identical source and dest %q", p.Source)
			}
			if !c.Contains(p.Source) || !c.Contains(p.Dest) {
				return fmt.Errorf("merge pair %s->%s outside community", p.Source, p.Dest)
			}
		}
	}
	return nil
}

// expandMergeAll rewrites merge_all as explicit pairs, all absorbed into
// the earliest-created member (ties by lower id).
func expandMergeAll(c *model.Community, entries map[string]*model.Entry) []model.MergePair {
	ids := append([]string(nil), c.Members...)
	sort.Strings(ids)

	survivor := ""
	for _, id := range ids {
		e, ok := entries[id]
		if !ok {
			continue
		}
		if survivor == "" {
			survivor = id
			continue
		}
		if e.CreatedAt.Before(entries[survivor].CreatedAt) {
			survivor = id
		}
	}
	if survivor == "" {
		return nil
	}

	var pairs []model.MergePair
	for _, id := range ids {
		if id != survivor {
			pairs = append(pairs, model.MergePair{Source: id, Dest: survivor})
		}
	}
	return pairs
}

func snippet(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary so the prompt never carries a torn rune.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
