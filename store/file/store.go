// Package file provides the reference Store backed by a single JSON
// document plus a sentinel lock file. The lock file is created with
// exclusive-create semantics, which makes it a working advisory lock on
// any filesystem where O_EXCL is honored.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/getpup/migrate"
	"github.com/getpup/migrate/store"
)

// Store persists execution history as a JSON document mapping migration
// ID to its record, with a sidecar lock file next to it.
type Store struct {
	path     string
	lockPath string
	owner    string
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New creates a file store writing history to path. The lock file lives
// next to it at path + ".lock". Each Store instance carries its own owner
// token so a release only ever removes a lock this instance acquired.
func New(path string) *Store {
	return &Store{
		path:     path,
		lockPath: path + ".lock",
		owner:    uuid.New().String(),
	}
}

// entry is the on-disk shape of one record.
type entry struct {
	Valid bool      `json:"valid"`
	Date  time.Time `json:"date"`
}

func (s *Store) load() (map[migrate.ID]entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[migrate.ID]entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history %s: %w", s.path, err)
	}

	entries := map[migrate.ID]entry{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse history %s: %w", s.path, err)
	}
	return entries, nil
}

// save writes the document atomically: a rename either fully replaces the
// history or leaves the old one intact.
func (s *Store) save(entries map[migrate.ID]entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create history folder: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace history %s: %w", s.path, err)
	}
	return nil
}

// Lock creates the sentinel lock file with O_EXCL.
// Returns store.ErrLockHeld when the file already exists.
func (s *Store) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0o755); err != nil {
		return fmt.Errorf("failed to create lock folder: %w", err)
	}

	f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return store.ErrLockHeld
	}
	if err != nil {
		return fmt.Errorf("failed to create lock file %s: %w", s.lockPath, err)
	}
	defer f.Close()

	if _, err := f.WriteString(s.owner); err != nil {
		return fmt.Errorf("failed to write lock owner: %w", err)
	}
	return nil
}

// Unlock removes the sentinel lock file. A missing lock file is not an
// error; unlock is idempotent.
func (s *Store) Unlock(ctx context.Context) error {
	err := os.Remove(s.lockPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove lock file %s: %w", s.lockPath, err)
	}
	return nil
}

// IsLocked reports whether the sentinel lock file exists.
func (s *Store) IsLocked(ctx context.Context) (bool, error) {
	_, err := os.Stat(s.lockPath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat lock file %s: %w", s.lockPath, err)
	}
	return true, nil
}

// History returns recorded executions sorted ascending by ID, windowed
// per opts.
func (s *Store) History(ctx context.Context, opts migrate.ListOptions) ([]migrate.Record, error) {
	entries, err := s.load()
	if err != nil {
		return nil, err
	}

	records := make([]migrate.Record, 0, len(entries))
	for name, e := range entries {
		records = append(records, migrate.Record{Name: name, Valid: e.Valid, AppliedAt: e.Date})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })

	return store.Window(records, opts), nil
}

// Show returns the record for name.
// Returns store.ErrNotFound if no record exists.
func (s *Store) Show(ctx context.Context, name migrate.ID) (migrate.Record, error) {
	entries, err := s.load()
	if err != nil {
		return migrate.Record{}, err
	}

	e, ok := entries[name]
	if !ok {
		return migrate.Record{}, store.ErrNotFound
	}
	return migrate.Record{Name: name, Valid: e.Valid, AppliedAt: e.Date}, nil
}

// Update upserts the record for name.
func (s *Store) Update(ctx context.Context, name migrate.ID, valid bool, appliedAt time.Time) error {
	entries, err := s.load()
	if err != nil {
		return err
	}

	entries[name] = entry{Valid: valid, Date: appliedAt}
	return s.save(entries)
}

// Remove deletes the record for name, reporting whether one existed.
func (s *Store) Remove(ctx context.Context, name migrate.ID) (bool, error) {
	entries, err := s.load()
	if err != nil {
		return false, err
	}

	_, ok := entries[name]
	if !ok {
		return false, nil
	}

	delete(entries, name)
	if err := s.save(entries); err != nil {
		return false, err
	}
	return true, nil
}
