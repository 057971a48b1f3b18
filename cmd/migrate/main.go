// Command migrate manages the MediStore database schema.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/medistore/backend/internal/infrastructure/config"
	"github.com/medistore/backend/internal/infrastructure/logger"
	"github.com/medistore/backend/internal/infrastructure/migration"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type migrateCLI struct {
	dir        string
	configPath string
	logLevel   string
	log        *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &migrateCLI{}
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "MediStore database migration tool",
		Long:          "Database settings come from config.toml or MEDISTORE_DATABASE_* variables.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			c.log = logger.NewCLI(c.logLevel)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = c.log.Sync()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.dir, "dir", "", "Read migrations from a directory instead of the embedded set")
	flags.StringVar(&c.configPath, "config", "", "Path to config file")
	flags.StringVar(&c.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(
		c.withMigrator("up", "Apply all pending migrations", cobra.NoArgs,
			func(m *migration.Migrator, _ []string) error { return m.Up() }),
		c.withMigrator("down", "Roll back all migrations", cobra.NoArgs,
			func(m *migration.Migrator, _ []string) error { return m.Down() }),
		c.withMigrator("step <n>", "Apply n migrations; negative rolls back", cobra.ExactArgs(1),
			func(m *migration.Migrator, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				return m.Steps(n)
			}),
		c.withMigrator("force <version>", "Mark a version as applied without running it", cobra.ExactArgs(1),
			func(m *migration.Migrator, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return m.Force(v)
			}),
		c.withMigrator("version", "Show the applied version", cobra.NoArgs,
			func(m *migration.Migrator, _ []string) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				c.log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
				return nil
			}),
		c.listCmd(),
		c.createCmd(),
	)
	return root
}

func (c *migrateCLI) source() fs.FS {
	if c.dir != "" {
		return os.DirFS(c.dir)
	}
	return migration.Embedded()
}

// withMigrator builds a command that runs fn against the configured database
func (c *migrateCLI) withMigrator(use, short string, args cobra.PositionalArgs, fn func(*migration.Migrator, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFrom(c.configPath)
			if err != nil {
				return err
			}
			db, err := sql.Open("postgres", cfg.Database.DSN())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("ping database: %w", err)
			}

			m, err := migration.NewWithSource(db, c.source(), c.log)
			if err != nil {
				return err
			}
			defer m.Close()
			return fn(m, args)
		},
	}
}

func (c *migrateCLI) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := migration.ListMigrations(c.source())
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func (c *migrateCLI) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> [description]",
		Short: "Create an up/down migration pair in --dir",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.dir == "" {
				return fmt.Errorf("create needs --dir pointing at the source migrations directory")
			}
			description := ""
			if len(args) > 1 {
				description = args[1]
			}
			mf, err := migration.CreateMigration(c.dir, args[0], description, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n  %s\n  %s\n", mf.Version, mf.UpPath, mf.DownPath)
			return nil
		},
	}
}
