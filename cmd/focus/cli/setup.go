package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/simonhq/focus/cmd/focus/cli/agent/claudecode"
	"github.com/simonhq/focus/cmd/focus/cli/paths"
)

func newEnableCmd() *cobra.Command {
	var skipConfirm bool

	cmd := &cobra.Command{
		Use:   "enable",
		Short: "Install the Claude Code hooks",
		Long:  "Register the UserPromptSubmit and Stop hooks in ~/.claude/settings.json so sessions are recorded and context is injected.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnable(cmd.OutOrStdout(), skipConfirm)
		},
	}

	cmd.Flags().BoolVarP(&skipConfirm, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func newDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Remove the Claude Code hooks",
		Long:  "Remove exactly the hook entries 'focus enable' added. Other hooks and settings are untouched.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDisable(cmd.OutOrStdout())
		},
	}
}

func runEnable(w io.Writer, skipConfirm bool) error {
	settingsPath, err := paths.ClaudeSettingsFile()
	if err != nil {
		return err
	}

	if !skipConfirm && isInteractive() {
		confirmed, err := confirmEnable(settingsPath)
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	count, err := claudecode.InstallHooks()
	if err != nil {
		return fmt.Errorf("installing hooks: %w", err)
	}

	if count > 0 {
		fmt.Fprintf(w, "✓ Installed %d hooks in %s\n", count, settingsPath)
	} else {
		fmt.Fprintln(w, "✓ Hooks already installed")
	}
	fmt.Fprintln(w, "\nSessions will be recorded on Stop and context injected on prompt submit.")
	fmt.Fprintln(w, "Run 'focus worker run' to process the recording queue.")
	return nil
}

func runDisable(w io.Writer) error {
	removed, err := claudecode.UninstallHooks()
	if err != nil {
		return fmt.Errorf("removing hooks: %w", err)
	}

	if removed > 0 {
		fmt.Fprintf(w, "✓ Removed %d hooks\n", removed)
	} else {
		fmt.Fprintln(w, "No focus hooks were installed.")
	}
	return nil
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func confirmEnable(settingsPath string) (bool, error) {
	confirmed := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Register focus hooks in %s?", settingsPath)).
				Description("Adds UserPromptSubmit and Stop hook commands. Existing settings are preserved.").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("confirmation cancelled: %w", err)
	}
	return confirmed, nil
}
