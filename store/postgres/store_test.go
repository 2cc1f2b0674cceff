package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/migrate"
	"github.com/getpup/migrate/store"
)

// newStore connects to the database named by MIGRATE_POSTGRES_TEST_URL and
// creates a fresh schema for the test. Tests are skipped when the variable
// is unset so the suite stays runnable without a server.
func newStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("MIGRATE_POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("MIGRATE_POSTGRES_TEST_URL not set, skipping postgres integration test")
	}

	db, err := sql.Open("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	config := DefaultTableConfig()
	_, err = db.Exec(MigrationDown(config))
	require.NoError(t, err)
	_, err = db.Exec(MigrationUp(config))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.Exec(MigrationDown(config))
	})

	return NewWithConfig(db, config)
}

func TestLock_Exclusive(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Lock(ctx))
	t.Cleanup(func() { _ = s.Unlock(ctx) })

	other := NewWithConfig(s.db, TableConfig{HistoryTable: s.historyTable, LockTable: s.lockTable})
	assert.ErrorIs(t, other.Lock(ctx), store.ErrLockHeld)

	locked, err := s.IsLocked(ctx)
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, s.Unlock(ctx))
	require.NoError(t, s.Unlock(ctx), "unlock is idempotent")

	locked, err = s.IsLocked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestHistory_WindowSemantics(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, name := range []migrate.ID{"1_one", "2_two", "3_three", "4_four"} {
		require.NoError(t, s.Update(ctx, name, true, ts))
	}

	records, err := s.History(ctx, migrate.ListOptions{GTE: "2_two", LTE: "3_three"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, migrate.ID("2_two"), records[0].Name)
	assert.Equal(t, migrate.ID("3_three"), records[1].Name)

	records, err = s.History(ctx, migrate.ListOptions{Reverse: true, Count: 2})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, migrate.ID("4_four"), records[0].Name)
	assert.Equal(t, migrate.ID("3_three"), records[1].Name)
}

func TestShowUpdateRemove(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Show(ctx, "1_one")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Update(ctx, "1_one", false, ts))
	require.NoError(t, s.Update(ctx, "1_one", true, ts.Add(time.Minute)))

	rec, err := s.Show(ctx, "1_one")
	require.NoError(t, err)
	assert.True(t, rec.Valid)

	existed, err := s.Remove(ctx, "1_one")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.Remove(ctx, "1_one")
	require.NoError(t, err)
	assert.False(t, existed)
}
