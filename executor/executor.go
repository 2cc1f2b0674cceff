// Package executor runs validated migration batches. Planning (the
// consistency check against recorded history) and execution are separate
// steps so the plan can be recomputed cheaply while waiting for the lock.
package executor

import (
	"context"
	"errors"

	"github.com/benbjohnson/clock"

	"github.com/getpup/migrate"
	"github.com/getpup/migrate/lister"
	"github.com/getpup/migrate/metrics"
	"github.com/getpup/migrate/store"
)

// Config holds configuration for the Executor.
type Config struct {
	// Store persists execution outcomes (required).
	Store store.Store

	// Source resolves migration IDs to runnable units (required).
	Source migrate.Source

	// Lister maps IDs back to file paths for error reporting and supplies
	// the candidate files during planning (required).
	Lister *lister.Lister

	// Check bounds how far back recorded history is validated
	// (default: 50 entries).
	Check int

	// Clock is the time source, swappable in tests (default: wall clock).
	Clock clock.Clock

	// Events receives lifecycle notifications (optional).
	Events *migrate.Events
}

// Executor executes migration batches strictly sequentially and records
// every outcome through the store.
type Executor struct {
	config Config
}

// New creates an Executor with the given configuration.
// Applies defaults for Check and Clock if unset.
func New(cfg Config) *Executor {
	if cfg.Check == 0 {
		cfg.Check = 50
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &Executor{config: cfg}
}

// Run executes the plan's batch in order. Each migration moves through
// load, run, and record: the outcome of every attempt is persisted before
// the next migration starts, so a failure partway leaves earlier
// completions recorded.
//
// A migration without an action for the plan's direction is skipped and
// never touches history. A failing action marks its record invalid (unless
// the error was wrapped with migrate.Safe) and halts the batch.
func (e *Executor) Run(ctx context.Context, plan *migrate.Plan) error {
	collector := metrics.NewCollector(string(plan.Direction))

	for _, name := range plan.Batch {
		unit, err := e.config.Source.Load(name)
		if err != nil {
			var nr *migrate.NotRunnableError
			if errors.As(err, &nr) && nr.Path == "" {
				nr.Path = e.config.Lister.Path(name)
			}
			return err
		}

		action := unit.Action(plan.Direction)
		if action == nil {
			collector.IncSkipped()
			e.config.Events.Skip(name, plan.Direction)
			continue
		}

		e.config.Events.Start(name, plan.Direction)
		started := e.config.Clock.Now()

		if err := action(ctx); err != nil {
			collector.IncFailed()
			if !migrate.IsSafe(err) {
				// The failed attempt is recorded invalid so the next run
				// refuses to proceed until an operator reconciles it.
				if uerr := e.config.Store.Update(ctx, name, false, e.config.Clock.Now()); uerr != nil {
					return &migrate.ExecutionError{Name: name, Direction: plan.Direction, Err: uerr}
				}
			}
			return &migrate.ExecutionError{Name: name, Direction: plan.Direction, Err: err}
		}

		elapsed := e.config.Clock.Now().Sub(started)

		if plan.Direction == migrate.DirectionDown {
			if _, err := e.config.Store.Remove(ctx, name); err != nil {
				return &migrate.ExecutionError{Name: name, Direction: plan.Direction, Err: err}
			}
		} else {
			if err := e.config.Store.Update(ctx, name, true, e.config.Clock.Now()); err != nil {
				return &migrate.ExecutionError{Name: name, Direction: plan.Direction, Err: err}
			}
		}

		collector.IncApplied()
		collector.ObserveDuration(elapsed.Seconds())
		e.config.Events.Complete(name, plan.Direction, elapsed)
	}

	return nil
}
