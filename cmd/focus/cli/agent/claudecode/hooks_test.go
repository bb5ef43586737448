package claudecode

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhq/focus/cmd/focus/cli/paths"
)

func setupClaudeDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(paths.EnvClaudeDir, dir)
	return filepath.Join(dir, "settings.json")
}

func readRawSettings(t *testing.T, path string) map[string]json.RawMessage {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	return raw
}

func TestInstallHooksFreshFile(t *testing.T) {
	settingsPath := setupClaudeDir(t)

	count, err := InstallHooks()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	data, err := os.ReadFile(settingsPath)
	require.NoError(t, err)

	var settings ClaudeSettings
	require.NoError(t, json.Unmarshal(data, &settings))
	assert.True(t, hookCommandExists(settings.Hooks.UserPromptSubmit, userPromptSubmitCmd))
	assert.True(t, hookCommandExists(settings.Hooks.Stop, stopCmd))
	assert.True(t, AreHooksInstalled())
}

func TestInstallHooksIdempotent(t *testing.T) {
	setupClaudeDir(t)

	count, err := InstallHooks()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = InstallHooks()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestInstallHooksPreservesUnknownKeys(t *testing.T) {
	settingsPath := setupClaudeDir(t)

	existing := `{
  "model": "opus",
  "permissions": {"deny": ["Read(.env)"]},
  "hooks": {
    "Stop": [{"matcher": "", "hooks": [{"type": "command", "command": "other-tool stop"}]}]
  }
}`
	require.NoError(t, os.WriteFile(settingsPath, []byte(existing), 0o600))

	count, err := InstallHooks()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	raw := readRawSettings(t, settingsPath)
	assert.JSONEq(t, `"opus"`, string(raw["model"]))
	assert.JSONEq(t, `{"deny": ["Read(.env)"]}`, string(raw["permissions"]))

	var settings ClaudeSettings
	data, err := os.ReadFile(settingsPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &settings))

	// The other tool's Stop hook survives alongside ours
	assert.True(t, hookCommandExists(settings.Hooks.Stop, "other-tool stop"))
	assert.True(t, hookCommandExists(settings.Hooks.Stop, stopCmd))
}

func TestUninstallHooksRemovesOnlyOurs(t *testing.T) {
	settingsPath := setupClaudeDir(t)

	existing := `{
  "hooks": {
    "Stop": [{"matcher": "", "hooks": [{"type": "command", "command": "other-tool stop"}]}]
  }
}`
	require.NoError(t, os.WriteFile(settingsPath, []byte(existing), 0o600))

	_, err := InstallHooks()
	require.NoError(t, err)

	removed, err := UninstallHooks()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.False(t, AreHooksInstalled())

	var settings ClaudeSettings
	data, err := os.ReadFile(settingsPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &settings))
	assert.True(t, hookCommandExists(settings.Hooks.Stop, "other-tool stop"))
	assert.Empty(t, settings.Hooks.UserPromptSubmit)
}

func TestUninstallHooksNoFile(t *testing.T) {
	setupClaudeDir(t)

	removed, err := UninstallHooks()
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestUninstallHooksIdempotent(t *testing.T) {
	setupClaudeDir(t)

	_, err := InstallHooks()
	require.NoError(t, err)

	removed, err := UninstallHooks()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = UninstallHooks()
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestAreHooksInstalledMissingFile(t *testing.T) {
	setupClaudeDir(t)
	assert.False(t, AreHooksInstalled())
}
