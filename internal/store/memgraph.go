package store

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/curatorhq/curator/internal/core/graphbuild"
	"github.com/curatorhq/curator/internal/core/model"
	"github.com/curatorhq/curator/internal/driver"
)

// MemgraphStore persists entries, decisions, and provenance as graph nodes
// and serves top-k neighbor queries through the Memgraph vector index.
type MemgraphStore struct {
	Driver driver.GraphDriver
}

func NewMemgraphStore(d driver.GraphDriver) *MemgraphStore {
	return &MemgraphStore{Driver: d}
}

func (s *MemgraphStore) Get(ctx context.Context, id string) (*model.Entry, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetEntryQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, model.ErrNotFound
	}
	return entryFromRecord(res.Records[0])
}

func (s *MemgraphStore) Put(ctx context.Context, e *model.Entry) error {
	_, err := s.Driver.ExecuteQuery(ctx, driver.SaveEntryQuery, map[string]interface{}{
		"id":          e.ID,
		"category":    e.Category,
		"section":     string(e.Section),
		"title":       e.Title,
		"body":        e.Body,
		"context":     e.Context,
		"author":      e.Author,
		"embed_state": string(e.EmbedState),
		"status":      string(e.Status),
		"atomized":    e.Atomized,
		"created_at":  e.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":  e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
	return err
}

func (s *MemgraphStore) List(ctx context.Context, f Filter) ([]*model.Entry, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.ListEntriesQuery, map[string]interface{}{
		"category":    f.Category,
		"status":      string(f.Status),
		"embed_state": string(f.EmbedState),
	})
	if err != nil {
		return nil, err
	}
	out := make([]*model.Entry, 0, len(res.Records))
	for _, rec := range res.Records {
		e, err := entryFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *MemgraphStore) Categories(ctx context.Context) ([]string, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.ListCategoriesQuery, nil)
	if err != nil {
		return nil, err
	}
	var cats []string
	for _, rec := range res.Records {
		if v, ok := rec.Get("category"); ok {
			if c, ok := v.(string); ok {
				cats = append(cats, c)
			}
		}
	}
	return cats, nil
}

func (s *MemgraphStore) TransitionStatus(ctx context.Context, id string, from, to model.Status) error {
	res, err := s.Driver.ExecuteQuery(ctx, driver.TransitionStatusQuery, map[string]interface{}{
		"id":         id,
		"from":       string(from),
		"to":         string(to),
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	if len(res.Records) == 0 {
		// Distinguish missing from conflicted for the error taxonomy.
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return model.ErrStatusConflict
	}
	return nil
}

func (s *MemgraphStore) RecordProvenance(ctx context.Context, rec model.ProvenanceRecord) error {
	_, err := s.Driver.ExecuteQuery(ctx, driver.SaveProvenanceQuery, map[string]interface{}{
		"id":         rec.ID,
		"op":         string(rec.Op),
		"parents":    rec.Parents,
		"children":   rec.Children,
		"round":      rec.Round,
		"created_at": rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	return err
}

func (s *MemgraphStore) RecordDecision(ctx context.Context, dec model.Decision) error {
	_, err := s.Driver.ExecuteQuery(ctx, driver.SaveDecisionQuery, map[string]interface{}{
		"id":           dec.ID,
		"community_id": dec.CommunityID,
		"category":     dec.Category,
		"round":        dec.Round,
		"kind":         string(dec.Kind),
		"rationale":    dec.Rationale,
		"created_at":   dec.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	return err
}

func (s *MemgraphStore) Lineage(ctx context.Context, id string) ([]model.ProvenanceRecord, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetLineageQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	var out []model.ProvenanceRecord
	for _, rec := range res.Records {
		pr := model.ProvenanceRecord{
			ID:       getString(rec, "id"),
			Op:       model.OpKind(getString(rec, "op")),
			Parents:  getStrings(rec, "parents"),
			Children: getStrings(rec, "children"),
			Round:    int(getInt(rec, "round")),
		}
		pr.CreatedAt, _ = time.Parse(time.RFC3339Nano, getString(rec, "created_at"))
		out = append(out, pr)
	}
	return out, nil
}

func (s *MemgraphStore) Ping(ctx context.Context) error {
	_, err := s.Driver.ExecuteQuery(ctx, "RETURN 1 AS ok", nil)
	return err
}

// SetVector writes the embedding onto the entry node and flips its state
// to ready; the vector index picks it up automatically.
func (s *MemgraphStore) SetVector(ctx context.Context, id string, vec []float32) error {
	emb := make([]float64, len(vec))
	for i, v := range vec {
		emb[i] = float64(v)
	}
	_, err := s.Driver.ExecuteQuery(ctx, driver.SaveVectorQuery, map[string]interface{}{
		"id":        id,
		"embedding": emb,
	})
	return err
}

// TopK implements graphbuild.NeighborSource by probing the vector index
// once per active embedded entry in the category.
func (s *MemgraphStore) TopK(ctx context.Context, category string, k int) ([]graphbuild.NeighborPair, error) {
	entries, err := s.List(ctx, Filter{Category: category, Status: model.StatusActive, EmbedState: model.EmbedReady})
	if err != nil {
		return nil, err
	}
	var pairs []graphbuild.NeighborPair
	for _, e := range entries {
		res, err := s.Driver.ExecuteQuery(ctx, driver.TopKNeighborsQuery, map[string]interface{}{
			"id": e.ID,
			"k":  k,
		})
		if err != nil {
			return nil, fmt.Errorf("vector search for %s: %w", e.ID, err)
		}
		for _, rec := range res.Records {
			pairs = append(pairs, graphbuild.NeighborPair{
				Source: e.ID,
				Target: getString(rec, "id"),
				Score:  getFloat(rec, "score"),
			})
		}
	}
	return pairs, nil
}

func entryFromRecord(rec *neo4j.Record) (*model.Entry, error) {
	e := &model.Entry{
		ID:         getString(rec, "id"),
		Category:   getString(rec, "category"),
		Section:    model.Section(getString(rec, "section")),
		Title:      getString(rec, "title"),
		Body:       getString(rec, "body"),
		Context:    getString(rec, "context"),
		Author:     getString(rec, "author"),
		EmbedState: model.EmbedState(getString(rec, "embed_state")),
		Status:     model.Status(getString(rec, "status")),
		Atomized:   getBool(rec, "atomized"),
	}
	if e.ID == "" {
		return nil, fmt.Errorf("entry record missing id")
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, getString(rec, "created_at"))
	e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, getString(rec, "updated_at"))
	return e, nil
}

func getString(rec *neo4j.Record, key string) string {
	if v, ok := rec.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getBool(rec *neo4j.Record, key string) bool {
	if v, ok := rec.Get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func getInt(rec *neo4j.Record, key string) int64 {
	if v, ok := rec.Get(key); ok {
		if n, ok := v.(int64); ok {
			return n
		}
	}
	return 0
}

func getFloat(rec *neo4j.Record, key string) float64 {
	if v, ok := rec.Get(key); ok {
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		}
	}
	return 0
}

func getStrings(rec *neo4j.Record, key string) []string {
	v, ok := rec.Get(key)
	if !ok {
		return nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
