package migrate

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	rootpkg "github.com/getpup/migrate"
	"github.com/getpup/migrate/executor"
	"github.com/getpup/migrate/lister"
	"github.com/getpup/migrate/locker"
	"github.com/getpup/migrate/store"
)

// clockNow returns the current time; injected so tests control timestamps.
type clockNow func() time.Time

// Option configures a Migrate.
type Option func(*config)

// config holds the internal configuration for creating a Migrate.
type config struct {
	store     store.Store
	dir       string
	ext       string
	source    rootpkg.Source
	events    *rootpkg.Events
	clock     clock.Clock
	check     int
	maxWait   time.Duration
	retryWait time.Duration
}

// New creates a Migrate with the given options.
//
// Required options:
//   - WithStore: the persistence backend for history and the lock
//   - WithDir: the migration folder
//
// Optional configuration (with defaults):
//   - WithExtension: migration file extension (default: ".sql")
//   - WithSource: how IDs resolve to runnable units (default: the
//     package-level registry, rootpkg.DefaultRegistry)
//   - WithEvents: lifecycle notifications (default: none)
//   - WithCheck: history lookback depth for the consistency check
//     (default: 50)
//   - WithMaxWait: total time to wait for a held lock (default: 10m)
//   - WithRetryWait: pause between lock attempts (default: 500ms)
//   - WithClock: time source (default: wall clock)
//
// Returns an error if any required option is missing.
func New(opts ...Option) (*Migrate, error) {
	cfg := &config{
		ext:       ".sql",
		source:    rootpkg.DefaultRegistry,
		check:     50,
		maxWait:   10 * time.Minute,
		retryWait: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.store == nil {
		return nil, fmt.Errorf("store is required: use WithStore option")
	}
	if cfg.dir == "" {
		return nil, fmt.Errorf("migration folder is required: use WithDir option")
	}
	if cfg.clock == nil {
		cfg.clock = clock.New()
	}

	l := lister.New(cfg.dir, cfg.ext)

	exec := executor.New(executor.Config{
		Store:  cfg.store,
		Source: cfg.source,
		Lister: l,
		Check:  cfg.check,
		Clock:  cfg.clock,
		Events: cfg.events,
	})

	lock := locker.New(locker.Config{
		Store:     cfg.store,
		MaxWait:   cfg.maxWait,
		RetryWait: cfg.retryWait,
		Clock:     cfg.clock,
		Events:    cfg.events,
	})

	return &Migrate{
		store:    cfg.store,
		lister:   l,
		executor: exec,
		locker:   lock,
		events:   cfg.events,
		clock:    cfg.clock.Now,
	}, nil
}

// WithStore sets the persistence backend for history and the lock.
func WithStore(s store.Store) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithDir sets the folder migration files are listed from.
func WithDir(dir string) Option {
	return func(c *config) {
		c.dir = dir
	}
}

// WithExtension sets the migration file extension, with or without the
// leading dot.
func WithExtension(ext string) Option {
	return func(c *config) {
		c.ext = ext
	}
}

// WithSource sets how migration IDs resolve to runnable units.
func WithSource(src rootpkg.Source) Option {
	return func(c *config) {
		c.source = src
	}
}

// WithEvents sets the lifecycle notification callbacks.
func WithEvents(events *rootpkg.Events) Option {
	return func(c *config) {
		c.events = events
	}
}

// WithCheck sets how many history entries back the consistency check
// walks. Records older than the lookback are never re-validated.
func WithCheck(check int) Option {
	return func(c *config) {
		c.check = check
	}
}

// WithMaxWait bounds the total wall-clock time spent waiting for a lock
// held by another process.
func WithMaxWait(d time.Duration) Option {
	return func(c *config) {
		c.maxWait = d
	}
}

// WithRetryWait sets the pause between attempts on a held lock.
func WithRetryWait(d time.Duration) Option {
	return func(c *config) {
		c.retryWait = d
	}
}

// WithClock sets the time source.
func WithClock(clk clock.Clock) Option {
	return func(c *config) {
		c.clock = clk
	}
}
