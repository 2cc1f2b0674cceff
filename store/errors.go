package store

import "errors"

var (
	// ErrLockHeld indicates another actor holds the exclusion token.
	// This is the only retryable lock outcome; everything else is fatal.
	ErrLockHeld = errors.New("lock held by another process")

	// ErrNotFound indicates no execution record exists for the migration.
	ErrNotFound = errors.New("record not found")
)
