package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const lockFileName = "curator.lock"

// RunLock is the advisory mutual-exclusion lock for the entry store. The
// engine is the sole writer during a run; a second invocation against the
// same artifacts directory fails fast instead of interleaving writes.
type RunLock struct {
	path string
}

func AcquireLock(dir string) (*RunLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("another curation run holds %s; remove the file if that run is dead", path)
		}
		return nil, err
	}
	fmt.Fprintf(f, "pid=%d started=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return &RunLock{path: path}, nil
}

func (l *RunLock) Release() error {
	return os.Remove(l.path)
}
