package postgres

import "fmt"

// TableConfig configures the table names used by the store.
type TableConfig struct {
	// HistoryTable is the name of the table storing execution records.
	HistoryTable string

	// LockTable is the name of the singleton lock table.
	LockTable string
}

// DefaultTableConfig returns the default table configuration.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		HistoryTable: "migrate_history",
		LockTable:    "migrate_lock",
	}
}

// MigrationUp returns the SQL to create the store tables. The history
// name column uses the C collation so ORDER BY matches the engine's
// byte-wise migration sequence.
func MigrationUp(config TableConfig) string {
	return fmt.Sprintf(`-- Execution history, one row per migration's last up attempt
CREATE TABLE %s (
    name TEXT COLLATE "C" PRIMARY KEY,
    valid BOOLEAN NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL
);

-- Singleton lock table; the primary key rejects a second holder
CREATE TABLE %s (
    lock_id INT PRIMARY KEY CHECK (lock_id = 1),
    owner UUID NOT NULL,
    locked_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`, config.HistoryTable, config.LockTable)
}

// MigrationDown returns the SQL to drop the store tables.
func MigrationDown(config TableConfig) string {
	return fmt.Sprintf(`DROP TABLE IF EXISTS %s;

DROP TABLE IF EXISTS %s;
`, config.LockTable, config.HistoryTable)
}
