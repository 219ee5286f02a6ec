package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/listsync/internal/storage/postgres"
)

var (
	migrationsPath string
	migrateSteps   int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL schema",
	Long: `Apply or roll back schema migrations against DATABASE_URL.

Migrations are compiled into the binary; --path points at a directory of
.sql files instead.

Examples:
  listsync migrate up
  listsync migrate down --steps 1
  listsync migrate version`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := databaseURL()
		if err != nil {
			return err
		}
		if err := postgres.MigrateUp(url, migrationsPath); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateSteps <= 0 {
			return fmt.Errorf("--steps must be at least 1")
		}
		url, err := databaseURL()
		if err != nil {
			return err
		}
		if err := postgres.MigrateDown(url, migrationsPath, migrateSteps); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", migrateSteps)
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := databaseURL()
		if err != nil {
			return err
		}
		version, dirty, err := postgres.MigrationVersion(url)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %t\n", version, dirty)
		return nil
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "migrations directory (default: embedded)")
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}

func databaseURL() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", fmt.Errorf("config error: %w", err)
	}
	if cfg.Database.URL == "" {
		return "", fmt.Errorf("DATABASE_URL is required")
	}
	return cfg.Database.URL, nil
}
