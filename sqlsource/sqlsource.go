// Package sqlsource resolves migrations from plain .sql files. A file is
// split into directional sections by marker comments:
//
//	-- +migrate Up
//	CREATE TABLE users (id SERIAL PRIMARY KEY);
//
//	-- +migrate Down
//	DROP TABLE users;
//
// Each section runs inside one transaction; a section that is missing
// resolves to a nil action, which the executor treats as a skip.
package sqlsource

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/getpup/migrate"
)

const (
	markerPrefix = "-- +migrate "
	markerUp     = "Up"
	markerDown   = "Down"
)

// Source loads migration units from SQL files in one directory and runs
// them against db.
type Source struct {
	db  *sql.DB
	dir string
	ext string
}

// Compile-time check that Source implements migrate.Source.
var _ migrate.Source = (*Source)(nil)

// New creates a Source reading dir/<id><ext> files and executing them
// against db. The extension may be passed with or without the leading dot.
func New(db *sql.DB, dir, ext string) *Source {
	if ext == "" {
		ext = ".sql"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &Source{db: db, dir: dir, ext: ext}
}

// Load parses the file for name into a migration unit.
// Returns a NotRunnableError carrying the file path when the file is
// missing or contains no marked section at all.
func (s *Source) Load(name migrate.ID) (*migrate.Migration, error) {
	path := filepath.Join(s.dir, string(name)+s.ext)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &migrate.NotRunnableError{Name: name, Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migration %s: %w", path, err)
	}

	up, down, err := parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse migration %s: %w", path, err)
	}
	if up == "" && down == "" {
		return nil, &migrate.NotRunnableError{Name: name, Path: path}
	}

	m := &migrate.Migration{}
	if up != "" {
		m.Up = s.runner(up)
	}
	if down != "" {
		m.Down = s.runner(down)
	}
	return m, nil
}

// runner executes one section's statements in a single transaction.
func (s *Source) runner(script string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		for _, stmt := range splitStatements(script) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				if rbErr := tx.Rollback(); rbErr != nil {
					return fmt.Errorf("statement failed (%v) and rollback failed: %w", err, rbErr)
				}
				// The transaction rolled back cleanly, so the target is
				// unchanged and the record may keep its prior state.
				return migrate.Safe(err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit: %w", err)
		}
		return nil
	}
}

// parse splits a migration script into its up and down sections. Content
// before the first marker is rejected rather than silently attached to a
// direction.
func parse(script string) (up, down string, err error) {
	var (
		section  string
		sections = map[string]*strings.Builder{
			markerUp:   {},
			markerDown: {},
		}
	)

	scanner := bufio.NewScanner(strings.NewReader(script))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, markerPrefix) {
			section = strings.TrimSpace(strings.TrimPrefix(trimmed, markerPrefix))
			if _, ok := sections[section]; !ok {
				return "", "", fmt.Errorf("unknown section marker %q", trimmed)
			}
			continue
		}

		if section == "" {
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			return "", "", fmt.Errorf("statement before any %q marker", markerPrefix+markerUp)
		}

		sections[section].WriteString(line)
		sections[section].WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return "", "", err
	}

	return strings.TrimSpace(sections[markerUp].String()), strings.TrimSpace(sections[markerDown].String()), nil
}

// splitStatements breaks a section into single statements. Statement-level
// splitting keeps the mysql driver happy, which rejects multi-statement
// Exec by default.
func splitStatements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
