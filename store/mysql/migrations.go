package mysql

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

// MigrationUp returns the SQL to create the store tables.
func MigrationUp(config TableConfig) string {
	return fmt.Sprintf(`-- Execution history, one row per migration's last up attempt
CREATE TABLE %s (
    name VARCHAR(255) PRIMARY KEY,
    valid BOOLEAN NOT NULL,
    applied_at TIMESTAMP(6) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin;

-- Singleton lock table; the primary key rejects a second holder
CREATE TABLE %s (
    lock_id INT PRIMARY KEY,
    owner CHAR(36) NOT NULL,
    locked_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),

    CHECK (lock_id = 1)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin;
`, config.HistoryTable, config.LockTable)
}

// MigrationDown returns the SQL to drop the store tables.
func MigrationDown(config TableConfig) string {
	return fmt.Sprintf(`DROP TABLE IF EXISTS %s;

DROP TABLE IF EXISTS %s;
`, config.LockTable, config.HistoryTable)
}
