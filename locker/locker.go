// Package locker serializes migration batches across processes. It is the
// only code allowed to lock or unlock a store: everything that mutates
// execution records runs inside Acquire.
package locker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"

	"github.com/getpup/migrate"
	"github.com/getpup/migrate/metrics"
	"github.com/getpup/migrate/store"
)

// ErrTimeout indicates the lock stayed held by another actor for the whole
// wait budget. No state was mutated.
var ErrTimeout = errors.New("timed out waiting for migration lock")

// Config holds configuration for the Locker.
type Config struct {
	// Store provides the exclusion token (required).
	Store store.Store

	// MaxWait bounds the total wall-clock time spent waiting for a held
	// lock (default: 10m).
	MaxWait time.Duration

	// RetryWait is the pause between attempts on a held lock (default: 500ms).
	RetryWait time.Duration

	// Clock is the time source, swappable in tests (default: wall clock).
	Clock clock.Clock

	// Events receives waiting notifications (optional).
	Events *migrate.Events
}

// Locker acquires the store lock with bounded retry and runs one batch
// while holding it.
type Locker struct {
	config Config
}

// New creates a Locker with the given configuration.
// Applies defaults for MaxWait, RetryWait and Clock if unset.
func New(cfg Config) *Locker {
	if cfg.MaxWait == 0 {
		cfg.MaxWait = 10 * time.Minute
	}
	if cfg.RetryWait == 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &Locker{config: cfg}
}

// Acquire runs work under the store lock.
//
// plan is evaluated before every attempt. A nil/empty plan means there is
// nothing to do: Acquire returns (nil, nil) without ever touching the
// lock. Re-deriving the plan on each retry matters because another process
// may have completed the pending work while this one was waiting, turning
// this attempt into a no-op.
//
// When the lock is held by another actor, Acquire emits a waiting
// notification with the attempt count, sleeps RetryWait, and tries again
// until MaxWait of wall-clock time has elapsed, then fails with
// ErrTimeout. Any other lock error is fatal immediately.
//
// Once held, the lock is released on every exit path; an unlock failure
// after a work failure is attached to the work error rather than dropped.
func (l *Locker) Acquire(ctx context.Context, plan func(ctx context.Context) (*migrate.Plan, error), work func(ctx context.Context, p *migrate.Plan) error) (*migrate.Plan, error) {
	start := l.config.Clock.Now()

	for attempt := 1; ; attempt++ {
		p, err := plan(ctx)
		if err != nil {
			return nil, err
		}
		if p.Empty() {
			return nil, nil
		}

		err = l.config.Store.Lock(ctx)
		if err == nil {
			return p, l.run(ctx, p, work)
		}
		if !errors.Is(err, store.ErrLockHeld) {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}

		if l.config.Clock.Since(start) >= l.config.MaxWait {
			return nil, ErrTimeout
		}

		metrics.LockWaitsTotal.Inc()
		l.config.Events.Wait(attempt)

		timer := l.config.Clock.Timer(l.config.RetryWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Locker) run(ctx context.Context, p *migrate.Plan, work func(ctx context.Context, p *migrate.Plan) error) error {
	workErr := work(ctx, p)

	if err := l.config.Store.Unlock(ctx); err != nil {
		unlockErr := fmt.Errorf("failed to release lock: %w", err)
		if workErr != nil {
			return multierror.Append(workErr, unlockErr)
		}
		return unlockErr
	}
	return workErr
}
