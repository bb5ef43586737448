// Package testutil carries shared helpers for focus tests: temp config
// and Claude-dir wiring plus transcript fixture builders.
package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simonhq/focus/cmd/focus/cli/paths"
)

// ConfigDir points the focus config directory at a fresh temp dir for the
// duration of the test. When configTOML is non-empty it is written as
// config.toml inside that dir. Returns the dir.
func ConfigDir(t *testing.T, configTOML string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(paths.EnvConfigDir, dir)
	if configTOML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(configTOML), 0o600))
	}
	return dir
}

// ClaudeDir points the Claude Code home directory (settings.json, skills,
// projects) at a fresh temp dir for the duration of the test.
func ClaudeDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(paths.EnvClaudeDir, dir)
	return dir
}

// Transcript writes a JSONL transcript from the given raw lines and
// returns its path.
func Transcript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

// ConversationTranscript writes a transcript holding n user/assistant
// turn pairs with predictable content ("user message 0", "assistant
// reply 0", ...) and returns its path.
func ConversationTranscript(t *testing.T, turns int) string {
	t.Helper()

	var lines []string
	for i := 0; i < turns; i++ {
		user := map[string]any{
			"type": "user",
			"message": map[string]any{
				"role":    "user",
				"content": fmt.Sprintf("user message %d", i),
			},
			"timestamp": fmt.Sprintf("2026-08-25T10:%02d:00Z", i),
		}
		assistant := map[string]any{
			"type": "assistant",
			"message": map[string]any{
				"role":  "assistant",
				"model": "claude-sonnet-4-5",
				"content": []map[string]any{
					{"type": "text", "text": fmt.Sprintf("assistant reply %d", i)},
				},
			},
			"timestamp": fmt.Sprintf("2026-08-25T10:%02d:30Z", i),
		}
		for _, m := range []map[string]any{user, assistant} {
			b, err := json.Marshal(m)
			require.NoError(t, err)
			lines = append(lines, string(b))
		}
	}
	return Transcript(t, lines...)
}
