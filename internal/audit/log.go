// Package audit is the append-only sink for decisions and provenance. The
// JSONL files it writes are the source of truth for "why does this entry
// no longer exist": lineage is reconstructible from the log alone, with no
// store access.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/curatorhq/curator/internal/core/model"
)

const (
	decisionsFile  = "decisions.jsonl"
	provenanceFile = "provenance.jsonl"
)

// Log appends records to per-run JSONL files. Appends are serialized; the
// files are only ever opened O_APPEND, so no record overwrites another.
type Log struct {
	mu         sync.Mutex
	dir        string
	decisions  *os.File
	provenance *os.File
}

func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	dec, err := os.OpenFile(filepath.Join(dir, decisionsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open decision log: %w", err)
	}
	prov, err := os.OpenFile(filepath.Join(dir, provenanceFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		_ = dec.Close()
		return nil, fmt.Errorf("open provenance log: %w", err)
	}
	return &Log{dir: dir, decisions: dec, provenance: prov}, nil
}

func (l *Log) Dir() string { return l.dir }

func (l *Log) Decision(d model.Decision) error {
	return l.appendJSON(l.decisions, d)
}

func (l *Log) Provenance(p model.ProvenanceRecord) error {
	return l.appendJSON(l.provenance, p)
}

func (l *Log) appendJSON(f *os.File, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal log record: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append log record: %w", err)
	}
	return nil
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err1 := l.decisions.Close()
	err2 := l.provenance.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// ReadProvenance loads the full provenance log from a run directory.
func ReadProvenance(dir string) ([]model.ProvenanceRecord, error) {
	return readJSONL[model.ProvenanceRecord](filepath.Join(dir, provenanceFile))
}

// ReadDecisions loads the full decision log from a run directory.
func ReadDecisions(dir string) ([]model.Decision, error) {
	return readJSONL[model.Decision](filepath.Join(dir, decisionsFile))
}

// Lineage reconstructs the full ancestry of an entry from the provenance
// log alone: every record that (transitively) produced or consumed it.
func Lineage(dir, entryID string) ([]model.ProvenanceRecord, error) {
	records, err := ReadProvenance(dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	frontier := map[string]bool{entryID: true}
	var out []model.ProvenanceRecord
	taken := make(map[string]bool)

	// Walk backwards: any record whose children or parents mention a
	// frontier id joins the lineage, and its other endpoints extend the
	// frontier.
	for len(frontier) > 0 {
		next := make(map[string]bool)
		for _, rec := range records {
			if taken[rec.ID] {
				continue
			}
			if !touchesAny(rec, frontier) {
				continue
			}
			taken[rec.ID] = true
			out = append(out, rec)
			for _, id := range rec.Parents {
				if !seen[id] {
					next[id] = true
				}
			}
			for _, id := range rec.Children {
				if !seen[id] {
					next[id] = true
				}
			}
		}
		for id := range frontier {
			seen[id] = true
		}
		frontier = next
	}
	return out, nil
}

func touchesAny(rec model.ProvenanceRecord, ids map[string]bool) bool {
	for _, id := range rec.Parents {
		if ids[id] {
			return true
		}
	}
	for _, id := range rec.Children {
		if ids[id] {
			return true
		}
	}
	return false
}

func readJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			return nil, fmt.Errorf("corrupt log line: %w", err)
		}
		out = append(out, v)
	}
	return out, scanner.Err()
}
