package store

import (
	"context"
	"time"

	"github.com/getpup/migrate"
)

// Store provides persistence for migration execution history and the
// mutual-exclusion lock that guards it. Implementations must be safe to
// call from multiple processes contending for the same backing state.
//
// All operations are I/O-bound and honor ctx. Every mutation of history
// must happen while the caller holds the lock; the engine enforces this,
// implementations only have to make Lock exclusive.
type Store interface {
	// Lock attempts to acquire the exclusion token. Returns ErrLockHeld
	// if another actor already holds it, or a fatal error for any other
	// failure. ErrLockHeld is the only retryable lock outcome.
	Lock(ctx context.Context) error

	// Unlock releases the exclusion token even when another actor holds
	// it, so operators can clear a lock left by a crashed run. Unlocking
	// a store that is not locked is not an error.
	Unlock(ctx context.Context) error

	// IsLocked reports whether the exclusion token is currently held by
	// any actor.
	IsLocked(ctx context.Context) (bool, error)

	// History returns execution records sorted ascending by migration ID,
	// honoring the same window semantics as directory listing but over
	// recorded IDs rather than files.
	History(ctx context.Context, opts migrate.ListOptions) ([]migrate.Record, error)

	// Show returns the record for name. Returns ErrNotFound if no record
	// exists.
	Show(ctx context.Context, name migrate.ID) (migrate.Record, error)

	// Update upserts the record for name.
	Update(ctx context.Context, name migrate.ID, valid bool, appliedAt time.Time) error

	// Remove deletes the record for name. Returns true iff a record
	// existed and was deleted.
	Remove(ctx context.Context, name migrate.ID) (bool, error)
}

// Window applies ListOptions to records already sorted ascending by name.
// Backends that hold history in memory or in a document share this instead
// of reimplementing the boundary rules.
func Window(records []migrate.Record, opts migrate.ListOptions) []migrate.Record {
	out := make([]migrate.Record, 0, len(records))
	for _, rec := range records {
		if opts.GTE != "" && rec.Name < opts.GTE {
			continue
		}
		if opts.LTE != "" && rec.Name > opts.LTE {
			continue
		}
		out = append(out, rec)
	}

	if opts.Reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	if opts.Count > 0 && len(out) > opts.Count {
		out = out[:opts.Count]
	}

	return out
}
