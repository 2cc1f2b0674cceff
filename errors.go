package migrate

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a named boundary does not exist among the
	// candidate migration files.
	ErrNotFound = errors.New("migration not found")

	// ErrDuplicateID indicates two migration files normalize to the same
	// ID once their extension is stripped. The sequence would be ambiguous,
	// so listing rejects the whole directory.
	ErrDuplicateID = errors.New("duplicate migration id")
)

// UsageError indicates an invalid combination of options. It is surfaced
// before any I/O is performed.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return e.Msg
}

// ConsistencyError indicates the recorded execution history has diverged
// from the migration files on disk, or that a prior attempt left a record
// in an invalid state. Execution is aborted before any migration runs;
// an operator must reconcile with Force or Remove.
type ConsistencyError struct {
	// Name is the migration the divergence was detected on.
	Name ID

	// Reason describes the violation.
	Reason string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("migration %s %s", e.Name, e.Reason)
}

// ExecutionError indicates a migration action itself failed. The batch is
// halted; migrations completed earlier in the batch stay recorded.
type ExecutionError struct {
	// Name is the migration that failed.
	Name ID

	// Direction is the action that was running.
	Direction Direction

	// Err is the underlying failure.
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("migration %s failed during %s: %v", e.Name, e.Direction, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NotRunnableError indicates a migration file exists but no runnable unit
// could be resolved for it. This is fatal and not retryable.
type NotRunnableError struct {
	// Name is the migration that could not be resolved.
	Name ID

	// Path is the file the ID was derived from, when known.
	Path string
}

func (e *NotRunnableError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("migration %s is not runnable (%s)", e.Name, e.Path)
	}
	return fmt.Sprintf("migration %s is not runnable", e.Name)
}

// safeError wraps a migration failure that must not mark the record
// invalid: the action guarantees it left the prior state untouched.
type safeError struct {
	err error
}

func (e *safeError) Error() string {
	return e.err.Error()
}

func (e *safeError) Unwrap() error {
	return e.err
}

// Safe marks a migration failure as safe: the executor will halt the batch
// but leave the existing record untouched instead of marking it invalid.
func Safe(err error) error {
	if err == nil {
		return nil
	}
	return &safeError{err: err}
}

// IsSafe reports whether err or any error it wraps was marked with Safe.
func IsSafe(err error) bool {
	var se *safeError
	return errors.As(err, &se)
}
