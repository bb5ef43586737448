package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recorded sessions",
	}

	cmd.AddCommand(newSessionsListCmd())

	return cmd
}

func newSessionsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, st, err := loadSettingsAndStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			sessions, err := st.ListSessions(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}

			w := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(w, "No sessions recorded yet.")
				return nil
			}

			for _, sess := range sessions {
				title := "(untitled)"
				if sess.SessionTitle != nil && *sess.SessionTitle != "" {
					title = *sess.SessionTitle
				}
				if len(title) > 60 {
					title = title[:57] + "..."
				}

				processed := " "
				if sess.IsProcessed {
					processed = "✓"
				}

				when := "unknown"
				if sess.LastActivityAt != nil {
					when = sess.LastActivityAt.Format("2006-01-02 15:04")
				}

				fmt.Fprintf(w, "%s %-14s %3d turns  %s  %s\n",
					processed, shortSessionID(sess.SessionID), sess.TurnCount, when, title)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum sessions to show")

	return cmd
}

func shortSessionID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
