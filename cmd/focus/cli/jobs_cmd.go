package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the job queue",
	}

	cmd.AddCommand(newJobsStatsCmd())
	cmd.AddCommand(newJobsRequeueStaleCmd())

	return cmd
}

func newJobsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts by status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, st, err := loadSettingsAndStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.JobStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading job stats: %w", err)
			}

			w := cmd.OutOrStdout()
			if len(stats) == 0 {
				fmt.Fprintln(w, "Queue is empty.")
				return nil
			}

			statuses := make([]string, 0, len(stats))
			for status := range stats {
				statuses = append(statuses, status)
			}
			sort.Strings(statuses)

			total := 0
			for _, status := range statuses {
				fmt.Fprintf(w, "%-10s %d\n", status, stats[status])
				total += stats[status]
			}
			fmt.Fprintf(w, "%-10s %d\n", "total", total)

			if age, ok, err := st.OldestPendingAge(cmd.Context()); err == nil && ok {
				fmt.Fprintf(w, "\nOldest pending job: %s ago\n", age.Round(time.Second))
			}
			return nil
		},
	}
}

func newJobsRequeueStaleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue-stale",
		Short: "Return jobs with expired leases to the queue",
		Long:  "Run the lease sweep once. Jobs claimed by a worker that died get their lease cleared and become claimable again.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, st, err := loadSettingsAndStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			requeued, err := st.ExpireStaleLeases(cmd.Context())
			if err != nil {
				return fmt.Errorf("expiring stale leases: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d stale jobs\n", requeued)
			return nil
		},
	}
}
