package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simonhq/focus/cmd/focus/cli/store"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  "Apply the embedded schema migrations. Only this system's tables are managed; the companion app's domain tables are never touched.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadSettingsOnly()
			if err != nil {
				return err
			}
			if err := store.MigrateUp(cfg.General.DatabaseURL); err != nil {
				return fmt.Errorf("applying migrations: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Migrations applied")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadSettingsOnly()
			if err != nil {
				return err
			}
			if err := store.MigrateDown(cfg.General.DatabaseURL); err != nil {
				return fmt.Errorf("rolling back migration: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Migration rolled back")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current migration version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadSettingsOnly()
			if err != nil {
				return err
			}
			version, dirty, err := store.MigrationVersion(cfg.General.DatabaseURL)
			if err != nil {
				return fmt.Errorf("reading migration version: %w", err)
			}
			if version == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No migrations applied.")
				return nil
			}
			if dirty {
				fmt.Fprintf(cmd.OutOrStdout(), "Version %d (dirty - a migration failed midway)\n", version)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Version %d\n", version)
			}
			return nil
		},
	})

	return cmd
}
