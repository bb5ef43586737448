package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simonhq/focus/cmd/focus/cli/skills"
	"github.com/simonhq/focus/cmd/focus/cli/store"
	"github.com/simonhq/focus/cmd/focus/cli/summarize"
)

func newSkillsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "Manage Claude Code skills",
	}

	cmd.AddCommand(newSkillsListCmd())
	cmd.AddCommand(newSkillsGenerateCmd())
	cmd.AddCommand(newSkillsInstallCmd())
	cmd.AddCommand(newSkillsUninstallCmd())
	cmd.AddCommand(newSkillsSearchCmd())

	return cmd
}

func newSkillsListCmd() *cobra.Command {
	var projectPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed skills",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if projectPath == "" {
				if dir, err := os.Getwd(); err == nil {
					projectPath = dir
				}
			}

			installed, err := skills.ListInstalled(skills.ScopeAll, projectPath)
			if err != nil {
				return fmt.Errorf("scanning skills: %w", err)
			}

			w := cmd.OutOrStdout()
			if len(installed) == 0 {
				fmt.Fprintln(w, "No skills installed.")
				return nil
			}

			for _, skill := range installed {
				desc := skill.Description
				if len(desc) > 70 {
					desc = desc[:67] + "..."
				}
				fmt.Fprintf(w, "%-30s %-8s %s\n", skill.Name, skill.Scope, desc)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectPath, "project", "", "Project path for project-scoped skills (default: current directory)")

	return cmd
}

func newSkillsGenerateCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "generate <session-id>",
		Short: "Generate a skill from a recorded session",
		Long:  "Force the skill pipeline for one session. Honors the quality and duplicate gates but bypasses the daily auto-generation cap.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSkillsGenerate(cmd, args[0], dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the rendered SKILL.md without installing")

	return cmd
}

func runSkillsGenerate(cmd *cobra.Command, sessionID string, dryRun bool) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	cfg, st, err := loadSettingsAndStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := st.GetSessionByClaudeID(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	if err != nil {
		return err
	}

	// The daily cap applies to background auto-generation, not an
	// explicit request. The other gates stay in force.
	cfg.Skills.AutoGenerate = true
	cfg.Skills.MaxAutoSkillsPerDay = 1 << 30

	candidate, err := skills.AnalyzeSession(ctx, st, cfg, sess)
	if err != nil {
		return fmt.Errorf("analyzing session: %w", err)
	}
	if candidate == nil {
		fmt.Fprintln(w, "Session does not qualify for a skill (unprocessed, low quality, or a similar skill exists).")
		return nil
	}

	client, err := summarize.NewClient(cfg.Anthropic.APIKey)
	if err != nil {
		return fmt.Errorf("skill generation needs an API key: %w", err)
	}

	generated, err := skills.Generate(ctx, client, cfg.Skills.SkillGenerationModel,
		candidate.Description, candidate.Context, skills.SourceManual)
	if err != nil {
		return fmt.Errorf("generating skill: %w", err)
	}

	if dryRun {
		fmt.Fprintln(w, generated.FullContent)
		return nil
	}

	path, err := skills.Install(generated.Name, generated.FullContent, skills.InstallOptions{
		SupportingFiles: generated.SupportingFiles,
	})
	if err != nil {
		return fmt.Errorf("installing skill: %w", err)
	}

	score := candidate.QualityScore
	if err := st.InsertGeneratedSkill(ctx, &store.GeneratedSkill{
		Name:             generated.Name,
		Description:      generated.Description,
		Source:           skills.SourceManual,
		SourceSessionID:  &sessionID,
		InstalledPath:    path,
		Scope:            skills.ScopePersonal,
		QualityScore:     &score,
		SkillContentHash: skills.DescriptionHash(generated.Description),
		IsActive:         true,
	}); err != nil {
		return fmt.Errorf("recording skill: %w", err)
	}

	fmt.Fprintf(w, "✓ Installed skill %q at %s (quality %.2f)\n", generated.Name, path, candidate.QualityScore)
	return nil
}

func newSkillsInstallCmd() *cobra.Command {
	var force bool
	var repo string

	cmd := &cobra.Command{
		Use:   "install <path|name>",
		Short: "Install a skill from a file or the GitHub registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSkillsInstall(cmd, args[0], repo, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing skill with the same name")
	cmd.Flags().StringVar(&repo, "repo", "", "GitHub repo to fetch from (owner/name); searched registries otherwise")

	return cmd
}

func runSkillsInstall(cmd *cobra.Command, target, repo string, force bool) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	if data, err := os.ReadFile(target); err == nil { //nolint:gosec // user-supplied path by design
		return installSkillContent(w, string(data), nil, force)
	}

	cfg, err := loadSettingsOnly()
	if err != nil {
		return err
	}
	registry := skills.NewRegistry(cfg.Skills.GitHubToken)

	if repo != "" {
		skill, err := registry.FetchSkill(ctx, repo, target)
		if err != nil {
			return fmt.Errorf("fetching skill: %w", err)
		}
		if skill == nil || skill.SkillMDContent == "" {
			return fmt.Errorf("no SKILL.md found at %s/%s", repo, target)
		}
		return installSkillContent(w, skill.SkillMDContent, skill.SupportingFiles, force)
	}

	results := registry.Search(ctx, target, nil)
	for _, result := range results {
		if !strings.EqualFold(result.Name, target) || result.SourcePath == "" {
			continue
		}
		skill, err := registry.FetchSkill(ctx, result.SourceRepo, result.SourcePath)
		if err != nil {
			return fmt.Errorf("fetching skill: %w", err)
		}
		if skill != nil && skill.SkillMDContent != "" {
			return installSkillContent(w, skill.SkillMDContent, skill.SupportingFiles, force)
		}
	}

	return fmt.Errorf("skill %q not found on disk or in the registries (try 'focus skills search %s')", target, target)
}

func installSkillContent(w io.Writer, content string, supportingFiles map[string]string, force bool) error {
	if problems := skills.ValidateSkillContent(content); len(problems) > 0 {
		return fmt.Errorf("invalid skill: %s", strings.Join(problems, "; "))
	}

	name := skills.ParseFrontMatter(content).Name
	path, err := skills.Install(name, content, skills.InstallOptions{
		Force:           force,
		SupportingFiles: supportingFiles,
	})

	var exists *skills.ErrSkillExists
	if errors.As(err, &exists) {
		return fmt.Errorf("skill %q already installed (use --force to overwrite)", exists.Name)
	}
	if err != nil {
		return fmt.Errorf("installing skill: %w", err)
	}

	fmt.Fprintf(w, "✓ Installed skill %q at %s\n", name, path)
	return nil
}

func newSkillsUninstallCmd() *cobra.Command {
	var scope string
	var projectPath string

	cmd := &cobra.Command{
		Use:   "uninstall <name>",
		Short: "Remove an installed skill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := skills.Uninstall(args[0], scope, projectPath)
			if err != nil {
				return fmt.Errorf("uninstalling skill: %w", err)
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Skill %q is not installed.\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed skill %q\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", skills.ScopePersonal, "Scope to remove from (personal or project)")
	cmd.Flags().StringVar(&projectPath, "project", "", "Project path for project-scoped skills")

	return cmd
}

func newSkillsSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search public skill registries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettingsOnly()
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			results := skills.NewRegistry(cfg.Skills.GitHubToken).Search(cmd.Context(), query, nil)

			w := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(w, "No skills found.")
				return nil
			}

			for _, skill := range results {
				desc := skill.Description
				if len(desc) > 60 {
					desc = desc[:57] + "..."
				}
				fmt.Fprintf(w, "%-30s %-30s %s\n", skill.Name, skill.SourceRepo, desc)
			}
			return nil
		},
	}
}
