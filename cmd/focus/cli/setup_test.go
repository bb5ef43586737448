package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhq/focus/cmd/focus/cli/agent/claudecode"
	"github.com/simonhq/focus/cmd/focus/cli/testutil"
)

func TestEnableInstallsHooks(t *testing.T) {
	claudeDir := testutil.ClaudeDir(t)

	var out bytes.Buffer
	require.NoError(t, runEnable(&out, true))

	assert.Contains(t, out.String(), "Installed 2 hooks")
	assert.True(t, claudecode.AreHooksInstalled())

	data, err := os.ReadFile(filepath.Join(claudeDir, "settings.json"))
	require.NoError(t, err)

	var settings claudecode.ClaudeSettings
	require.NoError(t, json.Unmarshal(data, &settings))
	require.Len(t, settings.Hooks.UserPromptSubmit, 1)
	require.Len(t, settings.Hooks.Stop, 1)
}

func TestEnableIdempotent(t *testing.T) {
	testutil.ClaudeDir(t)

	var out bytes.Buffer
	require.NoError(t, runEnable(&out, true))

	out.Reset()
	require.NoError(t, runEnable(&out, true))
	assert.Contains(t, out.String(), "already installed")
}

func TestDisableRemovesHooks(t *testing.T) {
	testutil.ClaudeDir(t)

	var out bytes.Buffer
	require.NoError(t, runEnable(&out, true))

	out.Reset()
	require.NoError(t, runDisable(&out))
	assert.Contains(t, out.String(), "Removed 2 hooks")
	assert.False(t, claudecode.AreHooksInstalled())
}

func TestDisableWithoutInstall(t *testing.T) {
	testutil.ClaudeDir(t)

	var out bytes.Buffer
	require.NoError(t, runDisable(&out))
	assert.Contains(t, out.String(), "No focus hooks")
}
