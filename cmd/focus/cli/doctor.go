package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"

	"github.com/simonhq/focus/cmd/focus/cli/agent/claudecode"
	"github.com/simonhq/focus/cmd/focus/cli/paths"
	"github.com/simonhq/focus/cmd/focus/cli/settings"
	"github.com/simonhq/focus/cmd/focus/cli/skills"
	"github.com/simonhq/focus/cmd/focus/cli/store"
)

// staleQueueThreshold is how old the oldest pending job may get before
// doctor suggests the worker is not running.
const staleQueueThreshold = 5 * time.Minute

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the focus installation",
		Long:  "Verify configuration, database connectivity, hook registration, worker liveness, and skill directories. Problems are reported as warnings; the exit code stays 0.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runDoctor(cmd.Context(), cmd.OutOrStdout())
			return nil
		},
	}
}

func runDoctor(ctx context.Context, w io.Writer) {
	cfg := checkConfig(w)
	checkDatabase(ctx, w, cfg)
	checkHooks(w)
	checkWorker(ctx, w, cfg)
	checkSkillDirs(w)
	checkWorkspaceRepo(w)
}

func checkConfig(w io.Writer) *settings.Settings {
	cfg, err := settings.Load()
	if err != nil {
		fmt.Fprintf(w, "✕ config: %v\n", err)
		return settings.Defaults()
	}

	configFile, _ := paths.ConfigFile()
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		fmt.Fprintf(w, "○ config: no file at %s, using defaults\n", configFile)
	} else {
		fmt.Fprintf(w, "✓ config: %s\n", configFile)
	}

	if cfg.Anthropic.APIKey == "" {
		fmt.Fprintln(w, "○ anthropic: no API key - summaries fall back to truncation, skills are skipped")
	} else {
		fmt.Fprintln(w, "✓ anthropic: API key configured")
	}
	return cfg
}

func checkDatabase(ctx context.Context, w io.Writer, cfg *settings.Settings) {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	st, err := store.Open(pingCtx, cfg.General.DatabaseURL)
	if err != nil {
		fmt.Fprintf(w, "✕ database: %v\n", err)
		return
	}
	defer st.Close()
	fmt.Fprintln(w, "✓ database: reachable")

	version, dirty, err := store.MigrationVersion(cfg.General.DatabaseURL)
	switch {
	case err != nil:
		fmt.Fprintf(w, "✕ migrations: %v\n", err)
	case version == 0:
		fmt.Fprintln(w, "✕ migrations: none applied (run 'focus migrate up')")
	case dirty:
		fmt.Fprintf(w, "✕ migrations: version %d is dirty\n", version)
	default:
		fmt.Fprintf(w, "✓ migrations: version %d\n", version)
	}
}

func checkHooks(w io.Writer) {
	if claudecode.AreHooksInstalled() {
		fmt.Fprintln(w, "✓ hooks: registered in ~/.claude/settings.json")
	} else {
		fmt.Fprintln(w, "✕ hooks: not registered (run 'focus enable')")
	}
}

func checkWorker(ctx context.Context, w io.Writer, cfg *settings.Settings) {
	alive := workerProcessAlive()

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	st, err := store.Open(pingCtx, cfg.General.DatabaseURL)
	if err != nil {
		if alive {
			fmt.Fprintln(w, "✓ worker: pid file present")
		} else {
			fmt.Fprintln(w, "○ worker: not running")
		}
		return
	}
	defer st.Close()

	age, hasPending, err := st.OldestPendingAge(pingCtx)
	switch {
	case err != nil:
		fmt.Fprintf(w, "○ worker: could not inspect queue: %v\n", err)
	case hasPending && age > staleQueueThreshold && !alive:
		fmt.Fprintf(w, "✕ worker: not running and oldest pending job is %s old (run 'focus worker run')\n", age.Round(time.Second))
	case hasPending:
		fmt.Fprintf(w, "○ worker: %s of pending work queued\n", age.Round(time.Second))
	case alive:
		fmt.Fprintln(w, "✓ worker: running, queue drained")
	default:
		fmt.Fprintln(w, "✓ worker: queue empty")
	}
}

// workerProcessAlive checks the PID file and signals the process with 0.
func workerProcessAlive() bool {
	pidFile, err := paths.WorkerPIDFile()
	if err != nil {
		return false
	}
	data, err := os.ReadFile(pidFile) //nolint:gosec // path is under the focus config dir
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func checkSkillDirs(w io.Writer) {
	cwd, _ := os.Getwd()
	installed, err := skills.ListInstalled(skills.ScopeAll, cwd)
	if err != nil {
		fmt.Fprintf(w, "○ skills: %v\n", err)
		return
	}
	fmt.Fprintf(w, "✓ skills: %d installed\n", len(installed))
}

func checkWorkspaceRepo(w io.Writer) {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	repo, err := git.PlainOpenWithOptions(cwd, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		fmt.Fprintln(w, "○ workspace: not a git repository")
		return
	}

	head, err := repo.Head()
	if err != nil {
		fmt.Fprintln(w, "○ workspace: git repository with no commits")
		return
	}

	worktree, err := repo.Worktree()
	if err != nil {
		fmt.Fprintf(w, "✓ workspace: on %s\n", head.Name().Short())
		return
	}
	fmt.Fprintf(w, "✓ workspace: %s on %s\n", worktree.Filesystem.Root(), head.Name().Short())
}
