package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simonhq/focus/cmd/focus/cli/projectstate"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage the active project selection",
		Long:  "Bind a project slug to the current workspace (or globally) so retrieval and session linking prefer it over workspace-name inference.",
	}

	cmd.AddCommand(newProjectUseCmd())
	cmd.AddCommand(newProjectShowCmd())
	cmd.AddCommand(newProjectClearCmd())

	return cmd
}

func newProjectUseCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "use <slug>",
		Short: "Set the active project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, err := resolveWorkspace(global)
			if err != nil {
				return err
			}

			if err := projectstate.SetActiveProject(args[0], workspace); err != nil {
				return fmt.Errorf("setting active project: %w", err)
			}

			if global {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Active project set to %q globally\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Active project set to %q for %s\n", args[0], workspace)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Set the global default instead of binding the current directory")

	return cmd
}

func newProjectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active project selection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			state := projectstate.Read()

			cwd, _ := os.Getwd()
			if slug, ok := state.Workspaces[cwd]; ok && slug != "" {
				fmt.Fprintf(w, "Active project: %s (bound to %s)\n", slug, cwd)
			} else if state.Global != "" {
				fmt.Fprintf(w, "Active project: %s (global)\n", state.Global)
			} else {
				fmt.Fprintln(w, "No active project set. Session linking falls back to the workspace directory name.")
			}

			if len(state.Workspaces) > 0 {
				fmt.Fprintln(w, "\nWorkspace bindings:")
				for workspace, slug := range state.Workspaces {
					fmt.Fprintf(w, "  %-40s %s\n", workspace, slug)
				}
			}
			return nil
		},
	}
}

func newProjectClearCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the active project selection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			workspace, err := resolveWorkspace(global)
			if err != nil {
				return err
			}

			if err := projectstate.ClearActiveProject(workspace); err != nil {
				return fmt.Errorf("clearing active project: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "✓ Active project cleared")
			return nil
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Clear the global default instead of the current directory binding")

	return cmd
}

// resolveWorkspace returns "" for global operations, otherwise the
// current working directory.
func resolveWorkspace(global bool) (string, error) {
	if global {
		return "", nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolving working directory: %w", err)
	}
	return cwd, nil
}
