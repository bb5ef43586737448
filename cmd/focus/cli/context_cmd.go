package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simonhq/focus/cmd/focus/cli/classify"
	"github.com/simonhq/focus/cmd/focus/cli/retrieve"
	"github.com/simonhq/focus/redact"
)

func newContextCmd() *cobra.Command {
	var cwd string
	var maxTokens int
	var explain bool

	cmd := &cobra.Command{
		Use:   "context <prompt>",
		Short: "Preview the context that would be injected for a prompt",
		Long:  "Run the same classify → retrieve → format pipeline as the prompt-submit hook and print the result.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			w := cmd.OutOrStdout()

			if cwd == "" {
				if dir, err := os.Getwd(); err == nil {
					cwd = dir
				}
			}

			cfg, st, err := loadSettingsAndStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if maxTokens <= 0 {
				maxTokens = cfg.Context.MaxContextTokens
			}

			classifier, err := classify.NewClassifier(cmd.Context(), st)
			if err != nil {
				return fmt.Errorf("building classifier: %w", err)
			}
			cls := classifier.Classify(prompt, cwd)

			if explain {
				fmt.Fprintf(w, "Classification:\n")
				fmt.Fprintf(w, "  query_type: %s\n", cls.QueryType)
				fmt.Fprintf(w, "  confidence: %.2f\n", cls.Confidence)
				if len(cls.ProjectSlugs) > 0 {
					fmt.Fprintf(w, "  projects:   %s\n", strings.Join(cls.ProjectSlugs, ", "))
				}
				if len(cls.PersonNames) > 0 {
					fmt.Fprintf(w, "  people:     %s\n", strings.Join(cls.PersonNames, ", "))
				}
				if cls.WorkspaceProject != "" {
					fmt.Fprintf(w, "  workspace:  %s\n", cls.WorkspaceProject)
				}
				if len(cls.FilePaths) > 0 {
					fmt.Fprintf(w, "  files:      %s\n", strings.Join(cls.FilePaths, ", "))
				}
				fmt.Fprintln(w)
			}

			blocks := retrieve.NewRetriever(st).Retrieve(cmd.Context(), cls)
			if cfg.Context.RedactSecrets {
				for i := range blocks {
					blocks[i].Content = redact.String(blocks[i].Content)
				}
			}

			if explain {
				fmt.Fprintf(w, "Blocks (%d):\n", len(blocks))
				for _, block := range blocks {
					fmt.Fprintf(w, "  %.2f %-12s %s\n", block.RelevanceScore, block.SourceType, block.SourceID)
				}
				fmt.Fprintln(w)
			}

			formatted := retrieve.FormatContextBlocks(blocks, maxTokens)
			if formatted == "" {
				fmt.Fprintln(w, "No context qualified for this prompt.")
				return nil
			}

			fmt.Fprintln(w, formatted)
			return nil
		},
	}

	cmd.Flags().StringVar(&cwd, "cwd", "", "Working directory for workspace inference (default: current directory)")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Token budget (default: context.max_context_tokens)")
	cmd.Flags().BoolVar(&explain, "explain", false, "Show the classification and per-block scores")

	return cmd
}
