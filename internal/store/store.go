package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nhle/mailsync/internal/model"
)

// ErrNotFound is returned when a record id is not in the store.
var ErrNotFound = errors.New("record not found")

// Snapshot is the whole persisted store. It encodes to the shared
// document shape {"emails": [...], "lastSync": ISO-8601 | null}.
type Snapshot struct {
	Emails   []model.Message `json:"emails"`
	LastSync *time.Time      `json:"lastSync"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Emails: make([]model.Message, len(s.Emails))}
	for i, m := range s.Emails {
		out.Emails[i] = m.Clone()
	}
	if s.LastSync != nil {
		t := *s.LastSync
		out.LastSync = &t
	}
	return out
}

// Find returns the index of the record with id, or -1.
func (s *Snapshot) Find(id string) int {
	for i := range s.Emails {
		if s.Emails[i].ID == id {
			return i
		}
	}
	return -1
}

// Backend persists snapshots. Implementations read and write the whole
// snapshot; there is no row-level access.
type Backend interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Close() error
}

// Locker is implemented by backends shared with other processes. WithLock
// runs fn under an exclusive cross-process lock.
type Locker interface {
	WithLock(fn func() error) error
}

// Store serializes read-modify-write access to a Backend. Background sync
// cycles and foreground edits all go through Update, so none of them can
// overwrite another's changes.
type Store struct {
	mu      sync.Mutex
	backend Backend
}

// New wraps backend.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Load returns the current snapshot.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	err := s.withLock(func() error {
		var err error
		snap, err = s.backend.Load(ctx)
		return err
	})
	return snap, err
}

// Update loads the snapshot, applies fn, and saves the result. If fn
// returns an error nothing is saved and the error is returned. The saved
// snapshot is returned on success.
func (s *Store) Update(ctx context.Context, fn func(snap *Snapshot) error) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	err := s.withLock(func() error {
		var err error
		snap, err = s.backend.Load(ctx)
		if err != nil {
			return err
		}
		if err := fn(&snap); err != nil {
			return err
		}
		return s.backend.Save(ctx, snap)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) withLock(fn func() error) error {
	if l, ok := s.backend.(Locker); ok {
		return l.WithLock(fn)
	}
	return fn()
}
