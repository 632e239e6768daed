package graphbuild

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// NeighborCache persists top-k neighbor lists between builds so repeated
// graph constructions within a run avoid redundant vector-index queries.
// Entries are keyed by (embedding model, k, index version, category); any
// of those changing produces a different cache file.
type NeighborCache struct {
	Dir          string
	Model        string
	IndexVersion string
	// Refresh bypasses reads, forcing a fresh index query that then
	// overwrites the cached list.
	Refresh bool
}

func (c *NeighborCache) path(category string, k int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s|%s", c.Model, k, c.IndexVersion, category)))
	return filepath.Join(c.Dir, "neighbors-"+hex.EncodeToString(sum[:8])+".json")
}

func (c *NeighborCache) Get(category string, k int) ([]NeighborPair, bool) {
	if c.Refresh {
		return nil, false
	}
	data, err := os.ReadFile(c.path(category, k))
	if err != nil {
		return nil, false
	}
	var pairs []NeighborPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, false
	}
	return pairs, true
}

func (c *NeighborCache) Put(category string, k int, pairs []NeighborPair) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.Dir, err)
	}
	return writeJSONAtomic(c.path(category, k), pairs)
}

// writeJSONAtomic writes via a temp file and rename so a crash never
// leaves a truncated cache or artifact behind.
func writeJSONAtomic(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "tmp-*.json")
	if err != nil {
		return fmt.Errorf("create temp json: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode json: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp json: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp json: %w", err)
	}
	return nil
}
