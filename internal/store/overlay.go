package store

import (
	"context"
	"sort"
	"sync"

	"github.com/curatorhq/curator/internal/core/model"
)

// Overlay is the dry-run store: reads see the base store plus any writes
// made through the overlay, while the base itself is never touched. All
// captured mutations can be dumped as a side artifact for inspection.
type Overlay struct {
	base EntryStore

	mu         sync.RWMutex
	entries    map[string]model.Entry
	provenance []model.ProvenanceRecord
	decisions  []model.Decision
}

func NewOverlay(base EntryStore) *Overlay {
	return &Overlay{
		base:    base,
		entries: make(map[string]model.Entry),
	}
}

func (o *Overlay) Get(ctx context.Context, id string) (*model.Entry, error) {
	o.mu.RLock()
	if e, ok := o.entries[id]; ok {
		o.mu.RUnlock()
		cp := e
		return &cp, nil
	}
	o.mu.RUnlock()
	return o.base.Get(ctx, id)
}

func (o *Overlay) Put(ctx context.Context, e *model.Entry) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries[e.ID] = *e
	return nil
}

func (o *Overlay) List(ctx context.Context, f Filter) ([]*model.Entry, error) {
	baseEntries, err := o.base.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}

	o.mu.RLock()
	merged := make(map[string]model.Entry, len(baseEntries)+len(o.entries))
	for _, e := range baseEntries {
		merged[e.ID] = *e
	}
	for id, e := range o.entries {
		merged[id] = e
	}
	o.mu.RUnlock()

	var out []*model.Entry
	for _, e := range merged {
		if !matches(&e, f) {
			continue
		}
		cp := e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (o *Overlay) Categories(ctx context.Context) ([]string, error) {
	entries, err := o.List(ctx, Filter{Status: model.StatusActive})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var cats []string
	for _, e := range entries {
		if !seen[e.Category] {
			seen[e.Category] = true
			cats = append(cats, e.Category)
		}
	}
	sort.Strings(cats)
	return cats, nil
}

func (o *Overlay) TransitionStatus(ctx context.Context, id string, from, to model.Status) error {
	e, err := o.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.Status != from {
		return model.ErrStatusConflict
	}
	e.Status = to
	return o.Put(ctx, e)
}

func (o *Overlay) RecordProvenance(ctx context.Context, rec model.ProvenanceRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.provenance = append(o.provenance, rec)
	return nil
}

func (o *Overlay) RecordDecision(ctx context.Context, dec model.Decision) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decisions = append(o.decisions, dec)
	return nil
}

func (o *Overlay) Lineage(ctx context.Context, id string) ([]model.ProvenanceRecord, error) {
	base, err := o.base.Lineage(ctx, id)
	if err != nil {
		return nil, err
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := append([]model.ProvenanceRecord(nil), base...)
	for _, rec := range o.provenance {
		for _, child := range rec.Children {
			if child == id {
				out = append(out, rec)
				break
			}
		}
	}
	return out, nil
}

func (o *Overlay) Ping(ctx context.Context) error {
	return o.base.Ping(ctx)
}

// Mutations reports everything the dry run would have written.
type Mutations struct {
	Entries    []model.Entry            `json:"entries"`
	Provenance []model.ProvenanceRecord `json:"provenance"`
	Decisions  []model.Decision         `json:"decisions"`
}

func (o *Overlay) Mutations() Mutations {
	o.mu.RLock()
	defer o.mu.RUnlock()
	m := Mutations{
		Provenance: append([]model.ProvenanceRecord(nil), o.provenance...),
		Decisions:  append([]model.Decision(nil), o.decisions...),
	}
	ids := make([]string, 0, len(o.entries))
	for id := range o.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		m.Entries = append(m.Entries, o.entries[id])
	}
	return m
}
