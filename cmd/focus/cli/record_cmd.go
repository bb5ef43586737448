package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simonhq/focus/cmd/focus/cli/paths"
	"github.com/simonhq/focus/cmd/focus/cli/record"
)

func newRecordCmd() *cobra.Command {
	var sessionID string
	var workspace string
	var all bool

	cmd := &cobra.Command{
		Use:   "record [transcript]",
		Short: "Record a session transcript into the database",
		Long:  "Parse a Claude Code JSONL transcript and store its turns. Safe to re-run: already-recorded turns are skipped by content hash.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				return runRecordAll(cmd.Context(), cmd.OutOrStdout())
			}
			if len(args) != 1 {
				return fmt.Errorf("transcript path required (or use --all)")
			}
			return runRecordOne(cmd.Context(), cmd.OutOrStdout(), args[0], sessionID, workspace)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session-id", "", "Session ID (default: transcript filename stem)")
	cmd.Flags().StringVar(&workspace, "workspace", "", "Workspace path (default: decoded from the transcript's project directory)")
	cmd.Flags().BoolVar(&all, "all", false, "Record every transcript under ~/.claude/projects")

	return cmd
}

func runRecordOne(ctx context.Context, w io.Writer, transcriptPath, sessionID, workspace string) error {
	if sessionID == "" {
		sessionID = paths.SessionIDFromTranscriptPath(transcriptPath)
	}
	if err := paths.ValidateSessionID(sessionID); err != nil {
		return err
	}
	if workspace == "" {
		workspace = workspaceFromProjectDir(filepath.Base(filepath.Dir(transcriptPath)))
	}

	_, st, err := loadSettingsAndStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := record.RecordSession(ctx, st, sessionID, transcriptPath, workspace)
	if err != nil {
		return fmt.Errorf("recording session: %w", err)
	}
	if result.TranscriptMissing {
		return fmt.Errorf("transcript not found: %s", transcriptPath)
	}

	fmt.Fprintf(w, "Recorded %d turns (%d already stored) for session %s\n",
		result.TurnsRecorded, result.TurnsSkipped, sessionID)
	return nil
}

func runRecordAll(ctx context.Context, w io.Writer) error {
	projectsDir, err := paths.ClaudeProjectsDir()
	if err != nil {
		return err
	}

	transcripts, err := filepath.Glob(filepath.Join(projectsDir, "*", "*.jsonl"))
	if err != nil {
		return fmt.Errorf("scanning %s: %w", projectsDir, err)
	}
	if len(transcripts) == 0 {
		fmt.Fprintln(w, "No transcripts found.")
		return nil
	}

	_, st, err := loadSettingsAndStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	recorded, failed := 0, 0
	for _, transcriptPath := range transcripts {
		sessionID := paths.SessionIDFromTranscriptPath(transcriptPath)
		if paths.ValidateSessionID(sessionID) != nil {
			continue
		}
		workspace := workspaceFromProjectDir(filepath.Base(filepath.Dir(transcriptPath)))

		result, err := record.RecordSession(ctx, st, sessionID, transcriptPath, workspace)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", filepath.Base(transcriptPath), err)
			failed++
			continue
		}
		if result.TurnsRecorded > 0 {
			fmt.Fprintf(w, "%s: %d turns\n", sessionID, result.TurnsRecorded)
		}
		recorded += result.TurnsRecorded
	}

	fmt.Fprintf(w, "Done: %d sessions scanned, %d turns recorded", len(transcripts), recorded)
	if failed > 0 {
		fmt.Fprintf(w, ", %d failed", failed)
	}
	fmt.Fprintln(w)
	return nil
}

// workspaceFromProjectDir reverses Claude Code's project directory
// encoding (`/root/module` → `-root-module`). The encoding is lossy
// (every non-alphanumeric becomes a dash), so this recovers the common
// case of plain absolute paths.
func workspaceFromProjectDir(name string) string {
	return strings.ReplaceAll(name, "-", "/")
}
