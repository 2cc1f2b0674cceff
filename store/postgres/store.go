// Package postgres provides a Store backed by PostgreSQL. History lives in
// a plain table; the exclusion token is a single-row lock table whose
// primary key makes a second insert fail, which maps directly onto the
// engine's retryable lock-held condition.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/getpup/migrate"
	"github.com/getpup/migrate/store"
)

// uniqueViolation is the PostgreSQL error code for a duplicate key.
const uniqueViolation = "23505"

// Store is a PostgreSQL implementation of store.Store.
type Store struct {
	db           *sql.DB
	historyTable string
	lockTable    string
	owner        string
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New creates a PostgreSQL store with default table names.
func New(db *sql.DB) *Store {
	return NewWithConfig(db, DefaultTableConfig())
}

// NewWithConfig creates a PostgreSQL store with custom table names.
func NewWithConfig(db *sql.DB, config TableConfig) *Store {
	return &Store{
		db:           db,
		historyTable: config.HistoryTable,
		lockTable:    config.LockTable,
		owner:        uuid.New().String(),
	}
}

// Lock inserts the singleton lock row.
// Returns store.ErrLockHeld when another actor already holds it.
func (s *Store) Lock(ctx context.Context) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (lock_id, owner, locked_at)
		VALUES (1, $1, NOW())
	`, s.lockTable)

	_, err := s.db.ExecContext(ctx, query, s.owner)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return store.ErrLockHeld
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	return nil
}

// Unlock deletes the lock row regardless of owner, matching the
// operator's force-release. Idempotent: a missing row is not an error.
func (s *Store) Unlock(ctx context.Context) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE lock_id = 1
	`, s.lockTable)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// IsLocked reports whether any actor holds the lock row.
func (s *Store) IsLocked(ctx context.Context) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS (SELECT 1 FROM %s WHERE lock_id = 1)
	`, s.lockTable)

	var locked bool
	if err := s.db.QueryRowContext(ctx, query).Scan(&locked); err != nil {
		return false, fmt.Errorf("failed to check lock: %w", err)
	}
	return locked, nil
}

// History returns recorded executions sorted ascending by ID, windowed
// per opts.
func (s *Store) History(ctx context.Context, opts migrate.ListOptions) ([]migrate.Record, error) {
	var (
		conds []string
		args  []interface{}
	)
	if opts.GTE != "" {
		args = append(args, string(opts.GTE))
		conds = append(conds, fmt.Sprintf("name >= $%d", len(args)))
	}
	if opts.LTE != "" {
		args = append(args, string(opts.LTE))
		conds = append(conds, fmt.Sprintf("name <= $%d", len(args)))
	}

	query := fmt.Sprintf("SELECT name, valid, applied_at FROM %s", s.historyTable)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if opts.Reverse {
		query += " ORDER BY name DESC"
	} else {
		query += " ORDER BY name ASC"
	}
	if opts.Count > 0 {
		args = append(args, opts.Count)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []migrate.Record
	for rows.Next() {
		var rec migrate.Record
		if err := rows.Scan(&rec.Name, &rec.Valid, &rec.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}
	return records, nil
}

// Show returns the record for name.
// Returns store.ErrNotFound if no record exists.
func (s *Store) Show(ctx context.Context, name migrate.ID) (migrate.Record, error) {
	query := fmt.Sprintf(`
		SELECT name, valid, applied_at FROM %s WHERE name = $1
	`, s.historyTable)

	var rec migrate.Record
	err := s.db.QueryRowContext(ctx, query, string(name)).Scan(&rec.Name, &rec.Valid, &rec.AppliedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return migrate.Record{}, store.ErrNotFound
	}
	if err != nil {
		return migrate.Record{}, fmt.Errorf("failed to show %s: %w", name, err)
	}
	return rec, nil
}

// Update upserts the record for name.
func (s *Store) Update(ctx context.Context, name migrate.ID, valid bool, appliedAt time.Time) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, valid, applied_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET valid = $2, applied_at = $3
	`, s.historyTable)

	if _, err := s.db.ExecContext(ctx, query, string(name), valid, appliedAt); err != nil {
		return fmt.Errorf("failed to update %s: %w", name, err)
	}
	return nil
}

// Remove deletes the record for name, reporting whether one existed.
func (s *Store) Remove(ctx context.Context, name migrate.ID) (bool, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s WHERE name = $1
	`, s.historyTable)

	result, err := s.db.ExecContext(ctx, query, string(name))
	if err != nil {
		return false, fmt.Errorf("failed to remove %s: %w", name, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return affected > 0, nil
}
