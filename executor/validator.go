package executor

import (
	"context"
	"fmt"

	"github.com/getpup/migrate"
	"github.com/getpup/migrate/metrics"
)

// PlanUp derives the batch of migrations to apply. With to set, the batch
// stops at that migration inclusive; with to empty, everything pending is
// selected. The consistency check runs first and aborts the whole
// operation on any divergence between recorded history and the current
// file set.
func (e *Executor) PlanUp(ctx context.Context, to migrate.ID) (*migrate.Plan, error) {
	files, err := e.config.Lister.List(migrate.ListOptions{})
	if err != nil {
		return nil, err
	}
	if to != "" && !contains(files, to) {
		return nil, fmt.Errorf("%w: %s", migrate.ErrNotFound, to)
	}

	// Recent history newest-first, bounded by the check lookback.
	history, err := e.config.Store.History(ctx, migrate.ListOptions{Reverse: true, Count: e.config.Check})
	if err != nil {
		return nil, err
	}

	if err := e.validate(files, history, ""); err != nil {
		return nil, err
	}

	var latest migrate.ID
	if len(history) > 0 {
		latest = history[0].Name
	}

	// Everything newer than the latest executed migration is pending,
	// ascending. The latest itself is excluded: it already ran.
	plan := &migrate.Plan{Direction: migrate.DirectionUp}
	for _, f := range files {
		if f <= latest {
			continue
		}
		if to != "" && f > to {
			break
		}
		plan.Batch = append(plan.Batch, f)
	}
	return plan, nil
}

// PlanDown derives the batch of migrations to roll back: every executed
// migration above the target boundary, newest first. The boundary itself
// stays applied. With to empty the whole recorded history (within the
// check lookback) is selected.
func (e *Executor) PlanDown(ctx context.Context, to migrate.ID) (*migrate.Plan, error) {
	files, err := e.config.Lister.List(migrate.ListOptions{})
	if err != nil {
		return nil, err
	}
	if to != "" && !contains(files, to) {
		return nil, fmt.Errorf("%w: %s", migrate.ErrNotFound, to)
	}

	// History from the target boundary forward, newest-first, bounded by
	// the check lookback.
	history, err := e.config.Store.History(ctx, migrate.ListOptions{GTE: to, Reverse: true, Count: e.config.Check})
	if err != nil {
		return nil, err
	}

	if err := e.validate(files, history, to); err != nil {
		return nil, err
	}

	plan := &migrate.Plan{Direction: migrate.DirectionDown}
	for _, rec := range history {
		if to != "" && rec.Name <= to {
			break
		}
		plan.Batch = append(plan.Batch, rec.Name)
	}
	return plan, nil
}

// validate walks recorded history and the file set together, newest to
// oldest, and rejects the three divergence classes before anything runs:
// a recorded migration whose file is gone, a recorded attempt left
// invalid, and a file inside the recorded span that was never run.
// floor bounds the walk from below (the down target); anything older than
// it, or older than the check lookback, is deliberately out of scope.
func (e *Executor) validate(files []migrate.ID, history []migrate.Record, floor migrate.ID) error {
	fail := func(err *migrate.ConsistencyError) error {
		metrics.ConsistencyFailuresTotal.Inc()
		return err
	}

	recorded := make(map[migrate.ID]migrate.Record, len(history))
	for _, rec := range history {
		if !contains(files, rec.Name) {
			return fail(&migrate.ConsistencyError{Name: rec.Name, Reason: "cannot be found"})
		}
		if !rec.Valid {
			return fail(&migrate.ConsistencyError{Name: rec.Name, Reason: "is in an invalid state"})
		}
		recorded[rec.Name] = rec
	}

	if len(history) == 0 {
		return nil
	}

	// history is newest-first. Every file at or below the newest recorded
	// migration must have been run; a gap means the sequence was mutated
	// after execution. When the lookback truncated history, files older
	// than its oldest entry are deliberately out of scope.
	newest := history[0].Name
	lower := floor
	if len(history) >= e.config.Check && history[len(history)-1].Name > lower {
		lower = history[len(history)-1].Name
	}
	for _, f := range files {
		if f > newest {
			continue
		}
		if lower != "" && f < lower {
			continue
		}
		if _, ok := recorded[f]; !ok {
			return fail(&migrate.ConsistencyError{Name: f, Reason: "has not been run yet"})
		}
	}

	return nil
}

func contains(ids []migrate.ID, name migrate.ID) bool {
	for _, id := range ids {
		if id == name {
			return true
		}
	}
	return false
}
