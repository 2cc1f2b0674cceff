package store

import (
	"context"
	"sync"
	"time"

	"github.com/getpup/migrate"
)

// MockStore is a configurable mock implementation of Store for use in
// tests. It allows setting up expected return values, tracking method
// calls, and injecting errors for testing error paths.
type MockStore struct {
	mu sync.RWMutex

	// LockFunc is called by Lock if set.
	LockFunc func(ctx context.Context) error

	// UnlockFunc is called by Unlock if set.
	UnlockFunc func(ctx context.Context) error

	// IsLockedFunc is called by IsLocked if set.
	IsLockedFunc func(ctx context.Context) (bool, error)

	// HistoryFunc is called by History if set.
	HistoryFunc func(ctx context.Context, opts migrate.ListOptions) ([]migrate.Record, error)

	// ShowFunc is called by Show if set.
	ShowFunc func(ctx context.Context, name migrate.ID) (migrate.Record, error)

	// UpdateFunc is called by Update if set.
	UpdateFunc func(ctx context.Context, name migrate.ID, valid bool, appliedAt time.Time) error

	// RemoveFunc is called by Remove if set.
	RemoveFunc func(ctx context.Context, name migrate.ID) (bool, error)

	// Call tracking
	LockCalls    int
	UnlockCalls  int
	HistoryCalls []migrate.ListOptions
	ShowCalls    []migrate.ID
	UpdateCalls  []UpdateCall
	RemoveCalls  []migrate.ID
}

// UpdateCall records one invocation of Update.
type UpdateCall struct {
	Name      migrate.ID
	Valid     bool
	AppliedAt time.Time
}

// Compile-time check that MockStore implements Store.
var _ Store = (*MockStore)(nil)

// Lock calls LockFunc if set, otherwise succeeds.
func (m *MockStore) Lock(ctx context.Context) error {
	m.mu.Lock()
	m.LockCalls++
	m.mu.Unlock()

	if m.LockFunc != nil {
		return m.LockFunc(ctx)
	}
	return nil
}

// Unlock calls UnlockFunc if set, otherwise succeeds.
func (m *MockStore) Unlock(ctx context.Context) error {
	m.mu.Lock()
	m.UnlockCalls++
	m.mu.Unlock()

	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx)
	}
	return nil
}

// IsLocked calls IsLockedFunc if set, otherwise reports false.
func (m *MockStore) IsLocked(ctx context.Context) (bool, error) {
	if m.IsLockedFunc != nil {
		return m.IsLockedFunc(ctx)
	}
	return false, nil
}

// History calls HistoryFunc if set, otherwise returns no records.
func (m *MockStore) History(ctx context.Context, opts migrate.ListOptions) ([]migrate.Record, error) {
	m.mu.Lock()
	m.HistoryCalls = append(m.HistoryCalls, opts)
	m.mu.Unlock()

	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, opts)
	}
	return nil, nil
}

// Show calls ShowFunc if set, otherwise reports ErrNotFound.
func (m *MockStore) Show(ctx context.Context, name migrate.ID) (migrate.Record, error) {
	m.mu.Lock()
	m.ShowCalls = append(m.ShowCalls, name)
	m.mu.Unlock()

	if m.ShowFunc != nil {
		return m.ShowFunc(ctx, name)
	}
	return migrate.Record{}, ErrNotFound
}

// Update calls UpdateFunc if set, otherwise succeeds.
func (m *MockStore) Update(ctx context.Context, name migrate.ID, valid bool, appliedAt time.Time) error {
	m.mu.Lock()
	m.UpdateCalls = append(m.UpdateCalls, UpdateCall{Name: name, Valid: valid, AppliedAt: appliedAt})
	m.mu.Unlock()

	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, name, valid, appliedAt)
	}
	return nil
}

// Remove calls RemoveFunc if set, otherwise reports false.
func (m *MockStore) Remove(ctx context.Context, name migrate.ID) (bool, error) {
	m.mu.Lock()
	m.RemoveCalls = append(m.RemoveCalls, name)
	m.mu.Unlock()

	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, name)
	}
	return false, nil
}
