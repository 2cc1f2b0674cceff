package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	rootpkg "github.com/getpup/migrate"
	"github.com/getpup/migrate/metrics"
	"github.com/getpup/migrate/pkg/migrate"
	"github.com/getpup/migrate/sqlsource"
	filestore "github.com/getpup/migrate/store/file"
	mysqlstore "github.com/getpup/migrate/store/mysql"
	postgresstore "github.com/getpup/migrate/store/postgres"
	sqlitestore "github.com/getpup/migrate/store/sqlite"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app carries everything a subcommand needs once the engine is built.
type app struct {
	config  Config
	engine  *migrate.Migrate
	logger  *zap.Logger
	db      *sql.DB
	metrics *metrics.Server
}

func (a *app) close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.metrics.Shutdown(ctx)
		cancel()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.logger.Sync()
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		dir        string
		extension  string
		backend    string
		dsn        string
	)

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Run schema and data migrations in strict order under a cross-process lock",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "migrate.toml", "path of the TOML config file")
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "migration folder (overrides config)")
	cmd.PersistentFlags().StringVar(&extension, "extension", "", "migration file extension (overrides config)")
	cmd.PersistentFlags().StringVar(&backend, "backend", "", "history backend: file, sqlite, postgres or mysql (overrides config)")
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "backend connection string (overrides config)")

	load := func(cmd *cobra.Command) (Config, error) {
		config, err := loadConfig(configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return config, err
		}
		if dir != "" {
			config.Dir = dir
		}
		if cmd.Flags().Changed("extension") {
			config.Extension = extension
		}
		if backend != "" {
			config.Backend = backend
		}
		if dsn != "" {
			config.DSN = dsn
		}
		return config, nil
	}

	cmd.AddCommand(
		newUpCommand(load),
		newDownCommand(load),
		newListCommand(load),
		newHistoryCommand(load),
		newCreateCommand(load),
		newForceCommand(load),
		newRemoveCommand(load),
		newLockedCommand(load),
		newUnlockCommand(load),
		newInitCommand(load),
	)

	return cmd
}

type configLoader func(cmd *cobra.Command) (Config, error)

// newApp builds the engine for config, opening the backend connection
// and starting the metrics server when one is configured.
func newApp(config Config, extra ...migrate.Option) (*app, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	a := &app{config: config, logger: logger}

	opts := []migrate.Option{
		migrate.WithDir(config.Dir),
		migrate.WithExtension(config.Extension),
		migrate.WithCheck(config.Check),
		migrate.WithMaxWait(time.Duration(config.Wait)),
		migrate.WithRetryWait(time.Duration(config.RetryWait)),
		migrate.WithEvents(migrate.LogEvents(logger)),
	}

	switch config.Backend {
	case "file":
		opts = append(opts, migrate.WithStore(filestore.New(config.DSN)))

	case "sqlite":
		db, err := sql.Open("sqlite3", config.DSN)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		a.db = db
		opts = append(opts,
			migrate.WithStore(sqlitestore.New(db)),
			migrate.WithSource(sqlsource.New(db, config.Dir, config.Extension)),
		)

	case "postgres":
		db, err := sql.Open("postgres", config.DSN)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		a.db = db
		opts = append(opts,
			migrate.WithStore(postgresstore.New(db)),
			migrate.WithSource(sqlsource.New(db, config.Dir, config.Extension)),
		)

	case "mysql":
		// The DSN needs parseTime=true for timestamp scanning.
		db, err := sql.Open("mysql", config.DSN)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to open mysql database: %w", err)
		}
		a.db = db
		opts = append(opts,
			migrate.WithStore(mysqlstore.New(db)),
			migrate.WithSource(sqlsource.New(db, config.Dir, config.Extension)),
		)

	default:
		a.close()
		return nil, &rootpkg.UsageError{Msg: fmt.Sprintf("unknown backend %q", config.Backend)}
	}

	opts = append(opts, extra...)

	a.engine, err = migrate.New(opts...)
	if err != nil {
		a.close()
		return nil, err
	}

	if config.MetricsAddr != "" {
		a.metrics = metrics.NewServer(config.MetricsAddr)
		a.metrics.Start()
	}

	return a, nil
}
