// Package cli implements the focus command tree.
package cli

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/simonhq/focus/cmd/focus/cli/settings"
	"github.com/simonhq/focus/cmd/focus/cli/store"
	"github.com/simonhq/focus/cmd/focus/cli/telemetry"
	"github.com/simonhq/focus/cmd/focus/cli/versioncheck"
)

const gettingStarted = `

Getting Started:
  Run 'focus enable' to register the Claude Code hooks, then
  'focus worker run' (or a systemd unit wrapping it) to process
  recorded sessions in the background.

`

// Version information (can be set at build time)
var (
	Version = "dev"
	Commit  = "unknown"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "focus",
		Short: "Durable memory for Claude Code sessions",
		Long:  "focus records Claude Code sessions and injects relevant context back into future prompts" + gettingStarted,
		// Let main.go handle error printing to avoid duplication
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			// Telemetry preference comes from settings; nil defaults to disabled
			var telemetryEnabled *bool
			if cfg, err := settings.Load(); err == nil {
				telemetryEnabled = cfg.General.Telemetry
			}

			telemetryClient := telemetry.NewClient(Version, telemetryEnabled)
			defer telemetryClient.Close()
			telemetryClient.TrackCommand(cmd)

			versioncheck.CheckAndNotify(cmd, Version)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newEnableCmd())
	cmd.AddCommand(newDisableCmd())
	cmd.AddCommand(newHooksCmd())
	cmd.AddCommand(newRecordCmd())
	cmd.AddCommand(newContextCmd())
	cmd.AddCommand(newWorkerCmd())
	cmd.AddCommand(newJobsCmd())
	cmd.AddCommand(newSkillsCmd())
	cmd.AddCommand(newProjectCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "focus %s (%s)\n", Version, Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// loadSettingsOnly loads settings without touching the database.
func loadSettingsOnly() (*settings.Settings, error) {
	cfg, err := settings.Load()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return cfg, nil
}

// loadSettingsAndStore opens the configured database. The caller owns
// the returned store and must Close it.
func loadSettingsAndStore(ctx context.Context) (*settings.Settings, *store.Store, error) {
	cfg, err := settings.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading settings: %w", err)
	}

	st, err := store.Open(ctx, cfg.General.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, st, nil
}
