package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nhle/mailsync/internal/fsutil"
	"github.com/nhle/mailsync/internal/model"
)

// JSONFile stores the snapshot as a single JSON document, the format the
// external enrichment process reads and writes. Writes are atomic and
// guarded by a flock on "<path>.lock".
type JSONFile struct {
	path string
}

// NewJSONFile returns a backend for the document at path. The file is
// created on first save.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Path returns the document path.
func (j *JSONFile) Path() string {
	return j.path
}

// Load reads the document. A missing file is an empty store.
func (j *JSONFile) Load(_ context.Context) (Snapshot, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{Emails: []model.Message{}}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading store %s: %w", j.path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decoding store %s: %w", j.path, err)
	}
	if snap.Emails == nil {
		snap.Emails = []model.Message{}
	}
	return snap, nil
}

// Save writes the document atomically.
func (j *JSONFile) Save(_ context.Context, snap Snapshot) error {
	if snap.Emails == nil {
		snap.Emails = []model.Message{}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}
	if _, err := fsutil.WriteFileAtomic(filepath.Dir(j.path), filepath.Base(j.path), data, 0o644); err != nil {
		return fmt.Errorf("writing store %s: %w", j.path, err)
	}
	return nil
}

// WithLock runs fn holding the document's sidecar lock.
func (j *JSONFile) WithLock(fn func() error) error {
	return fsutil.WithExclusiveLock(j.path+".lock", fn)
}

// Close is a no-op.
func (j *JSONFile) Close() error {
	return nil
}
