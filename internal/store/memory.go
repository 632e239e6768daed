package store

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/curatorhq/curator/internal/core/graphbuild"
	"github.com/curatorhq/curator/internal/core/model"
)

// MemoryStore keeps the corpus in process memory. It backs unit tests and
// small ephemeral runs, and doubles as the vector neighbor source by
// brute-force cosine scan over the vectors registered with SetVector.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]model.Entry
	vectors    map[string][]float32
	provenance []model.ProvenanceRecord
	decisions  []model.Decision
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]model.Entry),
		vectors: make(map[string][]float32),
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := e
	return &cp, nil
}

func (s *MemoryStore) Put(ctx context.Context, e *model.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = *e
	return nil
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]*model.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Entry
	for _, e := range s.entries {
		if !matches(&e, f) {
			continue
		}
		cp := e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Categories(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for _, e := range s.entries {
		if e.Status == model.StatusActive {
			seen[e.Category] = true
		}
	}
	cats := make([]string, 0, len(seen))
	for c := range seen {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats, nil
}

func (s *MemoryStore) TransitionStatus(ctx context.Context, id string, from, to model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return model.ErrNotFound
	}
	if e.Status != from {
		return model.ErrStatusConflict
	}
	e.Status = to
	s.entries[id] = e
	return nil
}

func (s *MemoryStore) RecordProvenance(ctx context.Context, rec model.ProvenanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provenance = append(s.provenance, rec)
	return nil
}

func (s *MemoryStore) RecordDecision(ctx context.Context, dec model.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, dec)
	return nil
}

func (s *MemoryStore) Lineage(ctx context.Context, id string) ([]model.ProvenanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ProvenanceRecord
	for _, rec := range s.provenance {
		for _, child := range rec.Children {
			if child == id {
				out = append(out, rec)
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// SetVector registers an entry's embedding and marks it ready.
func (s *MemoryStore) SetVector(ctx context.Context, id string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[id] = vec
	if e, ok := s.entries[id]; ok {
		e.EmbedState = model.EmbedReady
		s.entries[id] = e
	}
	return nil
}

// Decisions returns a copy of the recorded decision log, in order.
func (s *MemoryStore) Decisions() []model.Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Decision(nil), s.decisions...)
}

// Provenance returns a copy of the provenance log, in order.
func (s *MemoryStore) Provenance() []model.ProvenanceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ProvenanceRecord(nil), s.provenance...)
}

// Snapshot returns a deep copy of the entry table, for byte-for-byte
// comparisons in dry-run tests.
func (s *MemoryStore) Snapshot() map[string]model.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// TopK implements graphbuild.NeighborSource by brute-force cosine scan.
func (s *MemoryStore) TopK(ctx context.Context, category string, k int) ([]graphbuild.NeighborPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, e := range s.entries {
		if e.Category == category && e.Status == model.StatusActive && e.EmbedState == model.EmbedReady {
			if _, ok := s.vectors[id]; ok {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)

	var pairs []graphbuild.NeighborPair
	for _, src := range ids {
		type scored struct {
			id    string
			score float64
		}
		var hits []scored
		for _, tgt := range ids {
			if tgt == src {
				continue
			}
			hits = append(hits, scored{tgt, cosine(s.vectors[src], s.vectors[tgt])})
		}
		sort.Slice(hits, func(i, j int) bool {
			if hits[i].score != hits[j].score {
				return hits[i].score > hits[j].score
			}
			return hits[i].id < hits[j].id
		})
		limit := k
		if limit > len(hits) {
			limit = len(hits)
		}
		for _, h := range hits[:limit] {
			pairs = append(pairs, graphbuild.NeighborPair{Source: src, Target: h.id, Score: h.score})
		}
	}
	return pairs, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func matches(e *model.Entry, f Filter) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.EmbedState != "" && e.EmbedState != f.EmbedState {
		return false
	}
	return true
}
