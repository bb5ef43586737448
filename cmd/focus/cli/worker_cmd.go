package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/simonhq/focus/cmd/focus/cli/logging"
	"github.com/simonhq/focus/cmd/focus/cli/paths"
	"github.com/simonhq/focus/cmd/focus/cli/worker"
)

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Background job processing",
	}

	cmd.AddCommand(newWorkerRunCmd())

	return cmd
}

func newWorkerRunCmd() *cobra.Command {
	var once bool
	var maxJobs int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the background worker",
		Long:  "Claim and process queued jobs. Runs until interrupted; --once drains the queue and exits.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.InitStderr()
			defer logging.Close()

			ctx := cmd.Context()
			cfg, st, err := loadSettingsAndStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			w := worker.New(st, cfg)

			if once {
				processed, err := w.ProcessPending(ctx, maxJobs)
				if err != nil {
					return fmt.Errorf("processing jobs: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Processed %d jobs\n", processed)
				return nil
			}

			if err := writeWorkerPID(); err != nil {
				logging.Warn(ctx, "failed to write pid file", "error", err)
			}
			defer removeWorkerPID()

			pollInterval := time.Duration(cfg.Context.WorkerPollInterval * float64(time.Second))
			return w.Run(ctx, pollInterval)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Process pending jobs and exit")
	cmd.Flags().IntVar(&maxJobs, "max-jobs", worker.DefaultMaxJobs, "Maximum jobs to process with --once")

	return cmd
}

// writeWorkerPID records the worker's PID so doctor can report liveness.
func writeWorkerPID() error {
	pidFile, err := paths.WorkerPIDFile()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(pidFile), 0o750); err != nil {
		return err
	}
	return os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func removeWorkerPID() {
	if pidFile, err := paths.WorkerPIDFile(); err == nil {
		_ = os.Remove(pidFile)
	}
}
