package migrate

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rootpkg "github.com/getpup/migrate"
	filestore "github.com/getpup/migrate/store/file"
	"github.com/getpup/migrate/store/memory"
)

// engine builds a Migrate over a temp folder, an in-memory store, and a
// private registry recording execution order.
type engine struct {
	m        *Migrate
	store    *memory.Store
	registry *rootpkg.Registry
	dir      string

	mu  sync.Mutex
	ran []string
}

func newEngine(t *testing.T, names ...ID) *engine {
	t.Helper()

	e := &engine{
		store:    memory.New(),
		registry: rootpkg.NewRegistry(),
		dir:      t.TempDir(),
	}
	for _, name := range names {
		e.add(t, name)
	}

	var err error
	e.m, err = New(
		WithStore(e.store),
		WithDir(e.dir),
		WithSource(e.registry),
		WithRetryWait(time.Millisecond),
		WithMaxWait(time.Second),
	)
	require.NoError(t, err)
	return e
}

func (e *engine) add(t *testing.T, name ID) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, string(name)+".sql"), nil, 0o644))
	e.registry.Register(name, &rootpkg.Migration{
		Up: func(ctx context.Context) error {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.ran = append(e.ran, "up:"+string(name))
			return nil
		},
		Down: func(ctx context.Context) error {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.ran = append(e.ran, "down:"+string(name))
			return nil
		},
	})
}

func (e *engine) historyNames(t *testing.T) []ID {
	t.Helper()
	records, err := e.m.History(context.Background(), ListOptions{})
	require.NoError(t, err)
	names := make([]ID, len(records))
	for i, rec := range records {
		names[i] = rec.Name
	}
	return names
}

func TestNew_RequiredOptions(t *testing.T) {
	_, err := New(WithDir("migrations"))
	assert.ErrorContains(t, err, "store is required")

	_, err = New(WithStore(memory.New()))
	assert.ErrorContains(t, err, "folder is required")
}

func TestRunOptions_Usage(t *testing.T) {
	e := newEngine(t, "1_test")
	ctx := context.Background()

	var uerr *rootpkg.UsageError

	_, err := e.m.Up(ctx, RunOptions{})
	assert.ErrorAs(t, err, &uerr, "neither target nor all")

	_, err = e.m.Down(ctx, RunOptions{To: "1_test", All: true})
	assert.ErrorAs(t, err, &uerr, "both target and all")
}

func TestUpDownScenario(t *testing.T) {
	// The canonical walkthrough: 1_test and 2_test exist; up --all runs
	// both; down --to 1_test removes only 2_test; repeating it is a
	// no-op.
	e := newEngine(t, "1_test", "2_test")
	ctx := context.Background()

	executed, err := e.m.Up(ctx, RunOptions{All: true})
	require.NoError(t, err)
	assert.Equal(t, []ID{"1_test", "2_test"}, executed)
	assert.Equal(t, []ID{"1_test", "2_test"}, e.historyNames(t))

	executed, err = e.m.Down(ctx, RunOptions{To: "1_test"})
	require.NoError(t, err)
	assert.Equal(t, []ID{"2_test"}, executed)
	assert.Equal(t, []ID{"1_test"}, e.historyNames(t))

	executed, err = e.m.Down(ctx, RunOptions{To: "1_test"})
	require.NoError(t, err)
	assert.Empty(t, executed, "the second identical down is a no-op")
	assert.Equal(t, []ID{"1_test"}, e.historyNames(t))

	assert.Equal(t, []string{"up:1_test", "up:2_test", "down:2_test"}, e.ran)
}

func TestUp_Twice(t *testing.T) {
	e := newEngine(t, "1_test", "2_test")
	ctx := context.Background()

	_, err := e.m.Up(ctx, RunOptions{All: true})
	require.NoError(t, err)

	executed, err := e.m.Up(ctx, RunOptions{All: true})
	require.NoError(t, err)
	assert.Empty(t, executed, "every migration already ran")
	assert.Len(t, e.ran, 2)
}

func TestDownAll_ReversesEverything(t *testing.T) {
	e := newEngine(t, "1_test", "2_test", "3_test")
	ctx := context.Background()

	_, err := e.m.Up(ctx, RunOptions{All: true})
	require.NoError(t, err)

	executed, err := e.m.Down(ctx, RunOptions{All: true})
	require.NoError(t, err)
	assert.Equal(t, []ID{"3_test", "2_test", "1_test"}, executed)
	assert.Empty(t, e.historyNames(t))
}

func TestDryRun_TouchesNothing(t *testing.T) {
	e := newEngine(t, "1_test", "2_test")
	ctx := context.Background()

	planned, err := e.m.Up(ctx, RunOptions{All: true, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, []ID{"1_test", "2_test"}, planned)
	assert.Empty(t, e.ran)
	assert.Empty(t, e.historyNames(t))

	locked, err := e.m.Locked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestUp_TargetMustExist(t *testing.T) {
	e := newEngine(t, "1_test")

	_, err := e.m.Up(context.Background(), RunOptions{To: "9_missing"})
	assert.ErrorIs(t, err, rootpkg.ErrNotFound)
}

func TestForce_ReconcilesInvalidRecord(t *testing.T) {
	e := newEngine(t, "1_test", "2_test")
	ctx := context.Background()
	require.NoError(t, e.store.Update(ctx, "1_test", false, time.Now()))

	// An invalid record blocks execution until reconciled.
	_, err := e.m.Up(ctx, RunOptions{All: true})
	var cerr *rootpkg.ConsistencyError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ID("1_test"), cerr.Name)

	require.NoError(t, e.m.Force(ctx, "1_test"))

	rec, err := e.m.Show(ctx, "1_test")
	require.NoError(t, err)
	assert.True(t, rec.Valid)

	_, err = e.m.Up(ctx, RunOptions{All: true})
	require.NoError(t, err)
}

func TestRemove_ReconcilesMissingFile(t *testing.T) {
	e := newEngine(t, "1_test", "2_test")
	ctx := context.Background()

	_, err := e.m.Up(ctx, RunOptions{All: true})
	require.NoError(t, err)

	// The file for 2_test disappears; history now references a ghost.
	require.NoError(t, os.Remove(filepath.Join(e.dir, "2_test.sql")))

	_, err = e.m.Up(ctx, RunOptions{All: true})
	var cerr *rootpkg.ConsistencyError
	require.ErrorAs(t, err, &cerr)

	removed, err := e.m.Remove(ctx, "2_test")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = e.m.Remove(ctx, "2_test")
	require.NoError(t, err)
	assert.False(t, removed, "removing an absent record is a no-op")

	executed, err := e.m.Up(ctx, RunOptions{All: true})
	require.NoError(t, err)
	assert.Empty(t, executed)
}

func TestShow_NotFound(t *testing.T) {
	e := newEngine(t, "1_test")

	_, err := e.m.Show(context.Background(), "1_test")
	assert.ErrorIs(t, err, rootpkg.ErrNotFound)
}

func TestLockedAndUnlock(t *testing.T) {
	e := newEngine(t, "1_test")
	ctx := context.Background()

	require.NoError(t, e.store.Lock(ctx))

	locked, err := e.m.Locked(ctx)
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, e.m.Unlock(ctx))
	require.NoError(t, e.m.Unlock(ctx), "unlocking an idle store is fine")

	locked, err = e.m.Locked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestUp_WaitsForHeldLock(t *testing.T) {
	e := newEngine(t, "1_test")
	ctx := context.Background()

	require.NoError(t, e.store.Lock(ctx))

	var waited bool
	m, err := New(
		WithStore(e.store),
		WithDir(e.dir),
		WithSource(e.registry),
		WithRetryWait(time.Millisecond),
		WithMaxWait(time.Second),
		WithEvents(&Events{OnWait: func(attempt int) {
			if !waited {
				waited = true
				_ = e.store.Unlock(ctx)
			}
		}}),
	)
	require.NoError(t, err)

	executed, err := m.Up(ctx, RunOptions{All: true})
	require.NoError(t, err)
	assert.Equal(t, []ID{"1_test"}, executed)
	assert.True(t, waited, "the held lock forced at least one wait")
}

func TestTwoProcessesOverSharedFileStore(t *testing.T) {
	// Two engine instances sharing one history file behave like two
	// processes: the second sees the first's work and does nothing.
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "state", "history.json")
	migrationsDir := filepath.Join(dir, "migrations")
	require.NoError(t, os.MkdirAll(migrationsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(migrationsDir, "1_test.sql"), nil, 0o644))

	registry := rootpkg.NewRegistry()
	registry.Register("1_test", &rootpkg.Migration{
		Up:   func(ctx context.Context) error { return nil },
		Down: func(ctx context.Context) error { return nil },
	})

	newProcess := func() *Migrate {
		m, err := New(
			WithStore(filestore.New(historyPath)),
			WithDir(migrationsDir),
			WithSource(registry),
		)
		require.NoError(t, err)
		return m
	}

	ctx := context.Background()

	executed, err := newProcess().Up(ctx, RunOptions{All: true})
	require.NoError(t, err)
	assert.Equal(t, []ID{"1_test"}, executed)

	executed, err = newProcess().Up(ctx, RunOptions{All: true})
	require.NoError(t, err)
	assert.Empty(t, executed)
}

func TestCreate_Scaffold(t *testing.T) {
	e := newEngine(t)

	path, err := e.m.Create("add_users")
	require.NoError(t, err)
	require.NotEmpty(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "-- +migrate Up")
	assert.Contains(t, string(data), "-- +migrate Down")

	_, err = e.m.Create("bad title with spaces")
	assert.Error(t, err)
}
