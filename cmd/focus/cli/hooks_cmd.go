package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/simonhq/focus/cmd/focus/cli/agent/claudecode"
	"github.com/simonhq/focus/cmd/focus/cli/classify"
	"github.com/simonhq/focus/cmd/focus/cli/logging"
	"github.com/simonhq/focus/cmd/focus/cli/record"
	"github.com/simonhq/focus/cmd/focus/cli/retrieve"
	"github.com/simonhq/focus/cmd/focus/cli/settings"
	"github.com/simonhq/focus/redact"
)

// maxHookInputSize bounds the stdin payload a hook will read.
const maxHookInputSize = 1 << 20

func newHooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "hooks",
		Short:  "Hook handlers",
		Long:   "Commands called by Claude Code hooks. Internal, not for direct use.",
		Hidden: true,
	}

	cmd.AddCommand(newClaudeCodeHooksCmd())

	return cmd
}

func newClaudeCodeHooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "claude-code",
		Short:  "Claude Code hook handlers",
		Hidden: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:    claudecode.HookNameUserPromptSubmit,
		Short:  "Inject retrieved context into the submitted prompt",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runUserPromptSubmitHook(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:    claudecode.HookNameStop,
		Short:  "Enqueue the finished session for recording",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runStopHook(cmd.Context(), cmd.InOrStdin())
			return nil
		},
	})

	return cmd
}

// readHookInput decodes the JSON payload Claude Code writes to stdin.
func readHookInput(r io.Reader) (*claudecode.HookInput, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxHookInputSize))
	if err != nil {
		return nil, fmt.Errorf("reading hook input: %w", err)
	}

	var input claudecode.HookInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("parsing hook input: %w", err)
	}
	return &input, nil
}

// runUserPromptSubmitHook runs the classify → retrieve → redact → format
// pipeline and writes the context injection JSON to stdout. Every failure
// path logs and returns silently: a broken hook must never block the
// user's prompt.
func runUserPromptSubmitHook(ctx context.Context, stdin io.Reader, stdout io.Writer) {
	if err := logging.Init(); err == nil {
		defer logging.Close()
	}
	ctx = logging.WithComponent(ctx, "hook.user-prompt-submit")
	start := time.Now()

	input, err := readHookInput(stdin)
	if err != nil {
		logging.Warn(ctx, "bad hook input", "error", err)
		return
	}
	if input.Prompt == "" {
		return
	}
	ctx = logging.WithSession(ctx, input.SessionID)

	cfg, err := settings.Load()
	if err != nil {
		logging.Warn(ctx, "failed to load settings", "error", err)
		return
	}
	if !cfg.IsRetrievalEnabled() {
		return
	}

	timeout := time.Duration(cfg.Context.RetrievalTimeoutMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, st, err := loadSettingsAndStore(ctx)
	if err != nil {
		logging.Warn(ctx, "database unavailable, skipping retrieval", "error", err)
		return
	}
	defer st.Close()

	classifier, err := classify.NewClassifier(ctx, st)
	if err != nil {
		logging.Warn(ctx, "failed to build classifier", "error", err)
		return
	}
	cls := classifier.Classify(input.Prompt, input.CWD)

	blocks := retrieve.NewRetriever(st).Retrieve(ctx, cls)
	if cfg.Context.RedactSecrets {
		for i := range blocks {
			blocks[i].Content = redact.String(blocks[i].Content)
		}
	}

	formatted := retrieve.FormatContextBlocks(blocks, cfg.Context.MaxContextTokens)
	if formatted == "" {
		logging.Debug(ctx, "no context qualified", "blocks", len(blocks))
		return
	}

	output := claudecode.HookOutput{
		HookSpecificOutput: &claudecode.HookSpecificOutput{
			HookEventName:     claudecode.EventUserPromptSubmit,
			AdditionalContext: formatted,
		},
	}
	if err := json.NewEncoder(stdout).Encode(output); err != nil {
		logging.Warn(ctx, "failed to write hook output", "error", err)
		return
	}

	logging.LogDuration(ctx, slog.LevelInfo, "injected context", start,
		"blocks", len(blocks),
		"chars", len(formatted),
	)
}

// runStopHook enqueues a session_process job for the finished session.
// The actual transcript parse happens in the worker; this path only
// stats the file and inserts one row.
func runStopHook(ctx context.Context, stdin io.Reader) {
	if err := logging.Init(); err == nil {
		defer logging.Close()
	}
	ctx = logging.WithComponent(ctx, "hook.stop")

	input, err := readHookInput(stdin)
	if err != nil {
		logging.Warn(ctx, "bad hook input", "error", err)
		return
	}
	if input.SessionID == "" || input.TranscriptPath == "" {
		return
	}
	ctx = logging.WithSession(ctx, input.SessionID)

	cfg, err := settings.Load()
	if err != nil {
		logging.Warn(ctx, "failed to load settings", "error", err)
		return
	}
	if !cfg.IsRecordingEnabled() {
		return
	}

	timeout := time.Duration(cfg.Context.RecordingTimeoutMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, st, err := loadSettingsAndStore(ctx)
	if err != nil {
		logging.Warn(ctx, "database unavailable, skipping enqueue", "error", err)
		return
	}
	defer st.Close()

	enqueued, err := record.EnqueueSessionRecording(ctx, st, input.SessionID, input.TranscriptPath, input.CWD)
	if err != nil {
		logging.Warn(ctx, "failed to enqueue session recording", "error", err)
		return
	}
	logging.Debug(ctx, "stop hook done", "enqueued", enqueued)
}
