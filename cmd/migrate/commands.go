package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	rootpkg "github.com/getpup/migrate"
	"github.com/getpup/migrate/pkg/migrate"
	mysqlstore "github.com/getpup/migrate/store/mysql"
	postgresstore "github.com/getpup/migrate/store/postgres"
	sqlitestore "github.com/getpup/migrate/store/sqlite"
)

// runFlags are shared by up and down.
type runFlags struct {
	to     string
	all    bool
	dryRun bool
	check  int
	wait   time.Duration
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.to, "to", "", "target migration name")
	cmd.Flags().BoolVar(&f.all, "all", false, "select every pending migration")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "print the batch without executing it")
	cmd.Flags().IntVar(&f.check, "check", 0, "consistency lookback bound (overrides config)")
	cmd.Flags().DurationVar(&f.wait, "wait", 0, "how long to wait for a held lock (overrides config)")
}

func (f *runFlags) options() []migrate.Option {
	var opts []migrate.Option
	if f.check > 0 {
		opts = append(opts, migrate.WithCheck(f.check))
	}
	if f.wait > 0 {
		opts = append(opts, migrate.WithMaxWait(f.wait))
	}
	return opts
}

func newUpCommand(load configLoader) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations in ascending order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, load, flags, (*migrate.Migrate).Up)
		},
	}
	flags.register(cmd)
	return cmd
}

func newDownCommand(load configLoader) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back executed migrations in descending order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, load, flags, (*migrate.Migrate).Down)
		},
	}
	flags.register(cmd)
	return cmd
}

type batchFunc func(*migrate.Migrate, context.Context, migrate.RunOptions) ([]migrate.ID, error)

func runBatch(cmd *cobra.Command, load configLoader, flags runFlags, run batchFunc) error {
	config, err := load(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(config, flags.options()...)
	if err != nil {
		return err
	}
	defer a.close()

	executed, err := run(a.engine, cmd.Context(), migrate.RunOptions{
		To:     migrate.ID(flags.to),
		All:    flags.all,
		DryRun: flags.dryRun,
	})
	if err != nil {
		return err
	}

	if len(executed) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to do")
		return nil
	}
	for _, name := range executed {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

// windowFlags are shared by list and history.
type windowFlags struct {
	count   int
	gte     string
	lte     string
	reverse bool
}

func (f *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.count, "count", 0, "limit output to the first N entries")
	cmd.Flags().StringVar(&f.gte, "gte", "", "lower bound, inclusive")
	cmd.Flags().StringVar(&f.lte, "lte", "", "upper bound, inclusive")
	cmd.Flags().BoolVar(&f.reverse, "reverse", false, "descending order")
}

func (f *windowFlags) options() migrate.ListOptions {
	return migrate.ListOptions{
		GTE:     migrate.ID(f.gte),
		LTE:     migrate.ID(f.lte),
		Count:   f.count,
		Reverse: f.reverse,
	}
}

func newListCommand(load configLoader) *cobra.Command {
	var flags windowFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List candidate migrations from the migration folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := load(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(config)
			if err != nil {
				return err
			}
			defer a.close()

			names, err := a.engine.List(flags.options())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newHistoryCommand(load configLoader) *cobra.Command {
	var flags windowFlags

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded migration executions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := load(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(config)
			if err != nil {
				return err
			}
			defer a.close()

			records, err := a.engine.History(cmd.Context(), flags.options())
			if err != nil {
				return err
			}
			for _, rec := range records {
				state := "valid"
				if !rec.Valid {
					state = "invalid"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", rec.Name, state, rec.AppliedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newCreateCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "create [title]",
		Short: "Scaffold a new migration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := load(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(config)
			if err != nil {
				return err
			}
			defer a.close()

			path, err := a.engine.Create(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newForceCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "force [name]",
		Short: "Mark a migration's record valid without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := load(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(config)
			if err != nil {
				return err
			}
			defer a.close()

			return a.engine.Force(cmd.Context(), migrate.ID(args[0]))
		},
	}
}

func newRemoveCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [name]",
		Short: "Delete a migration's record without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := load(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(config)
			if err != nil {
				return err
			}
			defer a.close()

			removed, err := a.engine.Remove(cmd.Context(), migrate.ID(args[0]))
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(cmd.OutOrStdout(), "no record found")
			}
			return nil
		},
	}
}

func newLockedCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "locked",
		Short: "Exit 0 when the lock is free, 1 when it is held",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := load(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(config)
			if err != nil {
				return err
			}
			defer a.close()

			locked, err := a.engine.Locked(cmd.Context())
			if err != nil {
				return err
			}
			if locked {
				return errors.New("the lock is held")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "unlocked")
			return nil
		},
	}
}

func newUnlockCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Force-release the lock after a crashed run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := load(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(config)
			if err != nil {
				return err
			}
			defer a.close()

			return a.engine.Unlock(cmd.Context())
		},
	}
}

func newInitCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the backend's history and lock tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := load(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(config)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			switch config.Backend {
			case "file":
				// The file backend creates its document lazily.
				return nil
			case "sqlite":
				return sqlitestore.New(a.db).EnsureSchema(ctx)
			case "postgres":
				return execScript(ctx, a, postgresstore.MigrationUp(postgresstore.DefaultTableConfig()))
			case "mysql":
				return execScript(ctx, a, mysqlstore.MigrationUp(mysqlstore.DefaultTableConfig()))
			default:
				return &rootpkg.UsageError{Msg: fmt.Sprintf("unknown backend %q", config.Backend)}
			}
		},
	}
}

// execScript runs a semicolon-separated DDL script statement by
// statement, since not every driver accepts multi-statement execs.
func execScript(ctx context.Context, a *app, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}
	return nil
}
