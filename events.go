package migrate

import "time"

// Events receives lifecycle notifications from the engine. All fields are
// optional; nil callbacks are skipped. Callbacks are purely observational
// and must not affect control flow or outcomes.
type Events struct {
	// OnStart fires when a migration action begins.
	OnStart func(name ID, direction Direction)

	// OnComplete fires when a migration action finishes successfully.
	OnComplete func(name ID, direction Direction, elapsed time.Duration)

	// OnSkip fires when a migration defines no action for the requested
	// direction. Skipped migrations do not touch history.
	OnSkip func(name ID, direction Direction)

	// OnWait fires each time a lock attempt finds the lock held by another
	// actor, with the number of attempts made so far.
	OnWait func(attempt int)
}

// Start emits OnStart. Safe on a nil receiver.
func (e *Events) Start(name ID, direction Direction) {
	if e != nil && e.OnStart != nil {
		e.OnStart(name, direction)
	}
}

// Complete emits OnComplete. Safe on a nil receiver.
func (e *Events) Complete(name ID, direction Direction, elapsed time.Duration) {
	if e != nil && e.OnComplete != nil {
		e.OnComplete(name, direction, elapsed)
	}
}

// Skip emits OnSkip. Safe on a nil receiver.
func (e *Events) Skip(name ID, direction Direction) {
	if e != nil && e.OnSkip != nil {
		e.OnSkip(name, direction)
	}
}

// Wait emits OnWait. Safe on a nil receiver.
func (e *Events) Wait(attempt int) {
	if e != nil && e.OnWait != nil {
		e.OnWait(attempt)
	}
}
