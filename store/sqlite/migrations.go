package sqlite

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
