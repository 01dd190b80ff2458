package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/DukeRupert/cardapiofacil/internal"
)

// =============================================================================
// MIGRATE COMMAND - funnel_events schema
// =============================================================================

func newMigrateCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the analytics database schema",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"),
		"Postgres connection string (defaults to $DATABASE_URL)")

	open := func(cmd *cobra.Command) (*sql.DB, error) {
		if databaseURL == "" {
			return nil, errors.New("no database configured: set DATABASE_URL or --database-url")
		}
		db, err := sql.Open("pgx", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		if err := db.PingContext(cmd.Context()); err != nil {
			db.Close()
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
		return db, nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := open(cmd)
				if err != nil {
					return err
				}
				defer db.Close()

				if err := internal.RunMigrations(cmd.Context(), db); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				version, err := internal.MigrationVersion(cmd.Context(), db)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "database at version %d\n", version)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show which migrations are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := open(cmd)
				if err != nil {
					return err
				}
				defer db.Close()

				return internal.MigrationStatus(cmd.Context(), db)
			},
		},
	)

	return cmd
}
