package migrate

import "time"

// ID identifies a migration. It is derived from the migration's filename
// with the extension stripped, and the byte-wise lexicographic order of IDs
// is the migration sequence: there is no separate sequence number.
type ID string

// Direction selects which action of a migration to run.
type Direction string

const (
	// DirectionUp applies migrations in ascending ID order.
	DirectionUp Direction = "up"

	// DirectionDown rolls migrations back in descending ID order.
	DirectionDown Direction = "down"
)

// Record is the persisted outcome of a migration's last "up" attempt.
// A Record with Valid=false marks a failed attempt that has not been
// explicitly reconciled by an operator.
type Record struct {
	// Name is the migration the record belongs to.
	Name ID

	// Valid reports whether the last attempt completed without error.
	Valid bool

	// AppliedAt is when the attempt was made.
	AppliedAt time.Time
}

// ListOptions selects a window of an ordered sequence of IDs.
// The sequence is sorted ascending, the inclusive GTE/LTE window is
// applied, Reverse flips the order, and Count then truncates from the
// front of the (possibly reversed) result.
type ListOptions struct {
	// GTE is the inclusive lower boundary, empty for none.
	GTE ID

	// LTE is the inclusive upper boundary, empty for none.
	LTE ID

	// Count limits the result to at most Count entries, zero for no limit.
	Count int

	// Reverse flips the order before Count is applied.
	Reverse bool
}

// Plan is the validated, ordered batch of migrations selected for one
// Up or Down invocation. It is recomputed from scratch before every lock
// attempt because another process may have completed the work in the
// meantime.
type Plan struct {
	// Direction is the action the batch will run.
	Direction Direction

	// Batch holds the IDs to execute, in execution order: ascending for
	// up, descending for down.
	Batch []ID
}

// Empty reports whether the plan selects no migrations. An empty plan
// never touches the lock.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Batch) == 0
}
