// Package lister enumerates candidate migration IDs from a directory.
// It has no side effects; every call re-reads the directory so the result
// reflects the file set at that moment.
package lister

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/getpup/migrate"
)

// Lister lists migration files from one directory with one extension.
type Lister struct {
	dir string
	ext string
}

// New creates a Lister over dir, keeping only files with the given
// extension. The extension may be passed with or without the leading dot.
func New(dir, ext string) *Lister {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &Lister{dir: dir, ext: ext}
}

// Dir returns the directory being listed.
func (l *Lister) Dir() string {
	return l.dir
}

// Path returns the file path an ID was derived from.
func (l *Lister) Path(name migrate.ID) string {
	return filepath.Join(l.dir, string(name)+l.ext)
}

// List returns the IDs of all candidate migration files sorted ascending,
// windowed per opts. An empty directory yields an empty result, but a
// GTE/LTE boundary that names a migration absent from the current file set
// fails with migrate.ErrNotFound: boundaries are usually derived from
// recorded history, and an unresolvable one means files and history have
// diverged.
func (l *Lister) List(opts migrate.ListOptions) ([]migrate.ID, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration folder %s: %w", l.dir, err)
	}

	seen := make(map[migrate.ID]string, len(entries))
	ids := make([]migrate.ID, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		var id migrate.ID
		if l.ext != "" {
			if !strings.HasSuffix(name, l.ext) {
				continue
			}
			id = migrate.ID(strings.TrimSuffix(name, l.ext))
		} else {
			// No filter configured: accept every file and strip its own
			// extension. Two files differing only in extension collide here.
			id = migrate.ID(strings.TrimSuffix(name, filepath.Ext(name)))
		}
		if prev, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: %s and %s both resolve to %s", migrate.ErrDuplicateID, prev, name, id)
		}
		seen[id] = name
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if opts.GTE != "" {
		if _, ok := seen[opts.GTE]; !ok {
			return nil, fmt.Errorf("%w: %s", migrate.ErrNotFound, opts.GTE)
		}
	}
	if opts.LTE != "" {
		if _, ok := seen[opts.LTE]; !ok {
			return nil, fmt.Errorf("%w: %s", migrate.ErrNotFound, opts.LTE)
		}
	}

	windowed := ids[:0:0]
	for _, id := range ids {
		if opts.GTE != "" && id < opts.GTE {
			continue
		}
		if opts.LTE != "" && id > opts.LTE {
			continue
		}
		windowed = append(windowed, id)
	}

	if opts.Reverse {
		for i, j := 0, len(windowed)-1; i < j; i, j = i+1, j-1 {
			windowed[i], windowed[j] = windowed[j], windowed[i]
		}
	}

	if opts.Count > 0 && len(windowed) > opts.Count {
		windowed = windowed[:opts.Count]
	}

	return windowed, nil
}
