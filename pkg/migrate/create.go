package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var titlePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

const sqlTemplate = `-- +migrate Up


-- +migrate Down

`

const goTemplate = `package migrations

import (
	"context"

	"github.com/getpup/migrate"
)

func init() {
	migrate.Register(%q, &migrate.Migration{
		Up:   func(ctx context.Context) error { return nil },
		Down: func(ctx context.Context) error { return nil },
	})
}
`

// Create scaffolds a new migration file in the migration folder, named
// with a timestamp prefix so it sorts after every existing migration, and
// returns its path. The template matches the configured extension: a
// section-marker skeleton for .sql, a registry stub for .go.
func (m *Migrate) Create(title string) (string, error) {
	if title == "" {
		title = "migration"
	}
	if !titlePattern.MatchString(title) {
		return "", fmt.Errorf("title must contain only letters, numbers, underscores, and dashes (got: %s)", title)
	}

	name := fmt.Sprintf("%s_%s", m.clock().Format("20060102150405"), title)
	path := m.lister.Path(ID(name))

	var content string
	switch filepath.Ext(path) {
	case ".go":
		content = fmt.Sprintf(goTemplate, name)
	default:
		content = sqlTemplate
	}

	if err := os.MkdirAll(m.lister.Dir(), 0o755); err != nil {
		return "", fmt.Errorf("failed to create migration folder: %w", err)
	}

	// Exclusive create: a timestamp collision surfaces instead of
	// overwriting someone else's file.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create migration file %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return "", fmt.Errorf("failed to write migration file %s: %w", path, err)
	}
	return path, nil
}
