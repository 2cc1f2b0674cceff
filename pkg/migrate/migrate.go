// Package migrate composes the engine's pieces into the end-to-end
// operations: apply and roll back migration batches under the
// cross-process lock, plus the auxiliary history operations an operator
// needs to reconcile a diverged state.
package migrate

import (
	"context"
	"errors"
	"fmt"

	rootpkg "github.com/getpup/migrate"
	"github.com/getpup/migrate/executor"
	"github.com/getpup/migrate/lister"
	"github.com/getpup/migrate/locker"
	"github.com/getpup/migrate/store"
)

// Re-export core types from root package
type (
	// ID identifies a migration.
	ID = rootpkg.ID

	// Record is the persisted outcome of a migration's last up attempt.
	Record = rootpkg.Record

	// ListOptions selects a window of an ordered sequence.
	ListOptions = rootpkg.ListOptions

	// Events receives lifecycle notifications.
	Events = rootpkg.Events
)

// Migrate is the engine facade. Create one with New.
type Migrate struct {
	store    store.Store
	lister   *lister.Lister
	executor *executor.Executor
	locker   *locker.Locker
	events   *rootpkg.Events
	clock    clockNow
}

// RunOptions selects the target of one Up or Down invocation.
type RunOptions struct {
	// To names the target boundary migration. For up the batch runs
	// through To inclusive; for down everything above To is rolled back
	// and To itself stays applied.
	To ID

	// All selects every pending migration (up) or the whole recorded
	// history (down).
	All bool

	// DryRun computes and returns the batch without locking, validating
	// beyond the plan, or executing anything.
	DryRun bool
}

func (o RunOptions) validate() error {
	if o.To == "" && !o.All {
		return &rootpkg.UsageError{Msg: "either a target migration or all must be given"}
	}
	if o.To != "" && o.All {
		return &rootpkg.UsageError{Msg: "a target migration and all are mutually exclusive"}
	}
	return nil
}

// Up applies pending migrations in ascending order and returns the IDs
// that were executed (or would be, for a dry run). An empty result means
// the target was already satisfied; the lock is never touched in that
// case.
func (m *Migrate) Up(ctx context.Context, opts RunOptions) ([]ID, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return m.run(ctx, opts, m.executor.PlanUp)
}

// Down rolls back executed migrations in descending order, deleting their
// records, and returns the IDs that were executed (or would be, for a dry
// run). Running the same Down twice is a no-op the second time: nothing
// remains above the target.
func (m *Migrate) Down(ctx context.Context, opts RunOptions) ([]ID, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return m.run(ctx, opts, m.executor.PlanDown)
}

func (m *Migrate) run(ctx context.Context, opts RunOptions, planner func(ctx context.Context, to ID) (*rootpkg.Plan, error)) ([]ID, error) {
	to := opts.To
	if opts.All {
		to = ""
	}

	plan := func(ctx context.Context) (*rootpkg.Plan, error) {
		return planner(ctx, to)
	}

	if opts.DryRun {
		p, err := plan(ctx)
		if err != nil {
			return nil, err
		}
		return batchOf(p), nil
	}

	p, err := m.locker.Acquire(ctx, plan, func(ctx context.Context, p *rootpkg.Plan) error {
		return m.executor.Run(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return batchOf(p), nil
}

// List returns the candidate migration IDs from the migration folder,
// windowed per opts.
func (m *Migrate) List(opts ListOptions) ([]ID, error) {
	return m.lister.List(opts)
}

// History returns the recorded executions, windowed per opts.
func (m *Migrate) History(ctx context.Context, opts ListOptions) ([]Record, error) {
	return m.store.History(ctx, opts)
}

// Show returns the record for name.
// Returns rootpkg.ErrNotFound if none exists.
func (m *Migrate) Show(ctx context.Context, name ID) (Record, error) {
	rec, err := m.store.Show(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return Record{}, fmt.Errorf("%w: %s", rootpkg.ErrNotFound, name)
	}
	return rec, err
}

// Force marks name's record valid without running anything. This is the
// operator's escape hatch after a failed attempt left the record invalid.
// The update runs under the lock like every other record mutation.
func (m *Migrate) Force(ctx context.Context, name ID) error {
	plan := func(ctx context.Context) (*rootpkg.Plan, error) {
		return &rootpkg.Plan{Direction: rootpkg.DirectionUp, Batch: []ID{name}}, nil
	}

	_, err := m.locker.Acquire(ctx, plan, func(ctx context.Context, _ *rootpkg.Plan) error {
		return m.store.Update(ctx, name, true, m.clock())
	})
	return err
}

// Remove deletes name's record without running anything, reporting
// whether one existed. Like Force, it holds the lock for the mutation;
// when no record exists the lock is never touched.
func (m *Migrate) Remove(ctx context.Context, name ID) (bool, error) {
	plan := func(ctx context.Context) (*rootpkg.Plan, error) {
		_, err := m.store.Show(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &rootpkg.Plan{Direction: rootpkg.DirectionDown, Batch: []ID{name}}, nil
	}

	removed := false
	p, err := m.locker.Acquire(ctx, plan, func(ctx context.Context, _ *rootpkg.Plan) error {
		ok, err := m.store.Remove(ctx, name)
		removed = ok
		return err
	})
	if err != nil {
		return false, err
	}
	return p != nil && removed, nil
}

// Locked reports whether any process currently holds the lock.
func (m *Migrate) Locked(ctx context.Context) (bool, error) {
	return m.store.IsLocked(ctx)
}

// Unlock force-releases the lock. Intended for operators cleaning up
// after a crashed run; unlocking an idle store is not an error.
func (m *Migrate) Unlock(ctx context.Context) error {
	return m.store.Unlock(ctx)
}

func batchOf(p *rootpkg.Plan) []ID {
	if p.Empty() {
		return nil
	}
	return p.Batch
}
