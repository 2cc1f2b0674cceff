// Package memory provides an in-process Store for tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/getpup/migrate"
	"github.com/getpup/migrate/store"
)

// Store is an in-memory implementation of store.Store. It is safe for
// concurrent access within one process; the lock token only excludes
// callers of this one instance, which is what tests need.
type Store struct {
	mu      sync.Mutex
	locked  bool
	records map[migrate.ID]migrate.Record
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{records: make(map[migrate.ID]migrate.Record)}
}

// Lock acquires the exclusion token.
// Returns store.ErrLockHeld if it is already held.
func (s *Store) Lock(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return store.ErrLockHeld
	}
	s.locked = true
	return nil
}

// Unlock releases the exclusion token. Idempotent.
func (s *Store) Unlock(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.locked = false
	return nil
}

// IsLocked reports whether the exclusion token is held.
func (s *Store) IsLocked(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.locked, nil
}

// History returns recorded executions sorted ascending by ID, windowed
// per opts.
func (s *Store) History(ctx context.Context, opts migrate.ListOptions) ([]migrate.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]migrate.Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })

	return store.Window(records, opts), nil
}

// Show returns the record for name.
// Returns store.ErrNotFound if no record exists.
func (s *Store) Show(ctx context.Context, name migrate.ID) (migrate.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[name]
	if !ok {
		return migrate.Record{}, store.ErrNotFound
	}
	return rec, nil
}

// Update upserts the record for name.
func (s *Store) Update(ctx context.Context, name migrate.ID, valid bool, appliedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[name] = migrate.Record{Name: name, Valid: valid, AppliedAt: appliedAt}
	return nil
}

// Remove deletes the record for name, reporting whether one existed.
func (s *Store) Remove(ctx context.Context, name migrate.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.records[name]
	delete(s.records, name)
	return ok, nil
}
