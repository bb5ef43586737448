package claudecode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/simonhq/focus/cmd/focus/cli/jsonutil"
	"github.com/simonhq/focus/cmd/focus/cli/paths"
)

// Hook verbs dispatched by `focus hooks claude-code <verb>`.
const (
	HookNameUserPromptSubmit = "user-prompt-submit"
	HookNameStop             = "stop"
)

// Hook event names as they appear in settings.json and hook payloads.
const (
	EventUserPromptSubmit = "UserPromptSubmit"
	EventStop             = "Stop"
)

// Hook commands registered in settings.json.
const (
	userPromptSubmitCmd = "focus hooks claude-code user-prompt-submit"
	stopCmd             = "focus hooks claude-code stop"
)

// focusHookPrefix identifies hook commands owned by focus.
const focusHookPrefix = "focus hooks claude-code "

// InstallHooks registers the UserPromptSubmit and Stop hooks in
// ~/.claude/settings.json, creating the file if absent. Content outside
// the two hook entries is preserved byte-for-byte at the key level.
// Returns the number of hooks added (0 when already installed).
func InstallHooks() (int, error) {
	settingsPath, err := paths.ClaudeSettingsFile()
	if err != nil {
		return 0, err
	}

	rawSettings, hooks, err := readSettings(settingsPath)
	if err != nil {
		return 0, err
	}

	count := 0
	if !hookCommandExists(hooks.UserPromptSubmit, userPromptSubmitCmd) {
		hooks.UserPromptSubmit = addHookToMatcher(hooks.UserPromptSubmit, userPromptSubmitCmd)
		count++
	}
	if !hookCommandExists(hooks.Stop, stopCmd) {
		hooks.Stop = addHookToMatcher(hooks.Stop, stopCmd)
		count++
	}

	if count == 0 {
		return 0, nil
	}

	return count, writeSettings(settingsPath, rawSettings, hooks)
}

// UninstallHooks removes exactly the hook entries InstallHooks adds.
// Returns the number of hooks removed.
func UninstallHooks() (int, error) {
	settingsPath, err := paths.ClaudeSettingsFile()
	if err != nil {
		return 0, err
	}

	rawSettings, hooks, err := readSettings(settingsPath)
	if err != nil {
		return 0, err
	}
	if rawSettings == nil {
		// No settings file, nothing to remove
		return 0, nil
	}

	before := countFocusHooks(hooks)
	hooks.UserPromptSubmit = removeFocusHooks(hooks.UserPromptSubmit)
	hooks.Stop = removeFocusHooks(hooks.Stop)
	removed := before - countFocusHooks(hooks)

	if removed == 0 {
		return 0, nil
	}

	return removed, writeSettings(settingsPath, rawSettings, hooks)
}

// AreHooksInstalled reports whether both focus hooks are registered.
func AreHooksInstalled() bool {
	settingsPath, err := paths.ClaudeSettingsFile()
	if err != nil {
		return false
	}

	data, err := os.ReadFile(settingsPath) //nolint:gosec // path is from paths.ClaudeSettingsFile
	if err != nil {
		return false
	}

	var settings ClaudeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return false
	}

	return hookCommandExists(settings.Hooks.UserPromptSubmit, userPromptSubmitCmd) &&
		hookCommandExists(settings.Hooks.Stop, stopCmd)
}

// readSettings loads settings.json into a raw key map (to preserve
// unknown keys) plus the decoded hooks section. A missing file returns
// (nil, empty hooks, nil).
func readSettings(settingsPath string) (map[string]json.RawMessage, *ClaudeHooks, error) {
	hooks := &ClaudeHooks{}

	data, err := os.ReadFile(settingsPath) //nolint:gosec // path is from paths.ClaudeSettingsFile
	if err != nil {
		if os.IsNotExist(err) {
			return nil, hooks, nil
		}
		return nil, nil, fmt.Errorf("reading settings.json: %w", err)
	}

	var rawSettings map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawSettings); err != nil {
		return nil, nil, fmt.Errorf("parsing settings.json: %w", err)
	}
	if hooksRaw, ok := rawSettings["hooks"]; ok {
		if err := json.Unmarshal(hooksRaw, hooks); err != nil {
			return nil, nil, fmt.Errorf("parsing hooks in settings.json: %w", err)
		}
	}

	return rawSettings, hooks, nil
}

// writeSettings merges the hooks section back into the raw key map and
// writes the file.
func writeSettings(settingsPath string, rawSettings map[string]json.RawMessage, hooks *ClaudeHooks) error {
	if rawSettings == nil {
		rawSettings = make(map[string]json.RawMessage)
	}

	hooksJSON, err := json.Marshal(hooks)
	if err != nil {
		return fmt.Errorf("marshaling hooks: %w", err)
	}
	rawSettings["hooks"] = hooksJSON

	if err := os.MkdirAll(filepath.Dir(settingsPath), 0o750); err != nil {
		return fmt.Errorf("creating .claude directory: %w", err)
	}

	output, err := jsonutil.MarshalIndentWithNewline(rawSettings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, output, 0o600); err != nil {
		return fmt.Errorf("writing settings.json: %w", err)
	}

	return nil
}

func hookCommandExists(matchers []ClaudeHookMatcher, command string) bool {
	for _, matcher := range matchers {
		for _, hook := range matcher.Hooks {
			if hook.Command == command {
				return true
			}
		}
	}
	return false
}

func addHookToMatcher(matchers []ClaudeHookMatcher, command string) []ClaudeHookMatcher {
	entry := ClaudeHookEntry{
		Type:    "command",
		Command: command,
	}

	// UserPromptSubmit and Stop use an empty matcher
	for i, matcher := range matchers {
		if matcher.Matcher == "" {
			matchers[i].Hooks = append(matchers[i].Hooks, entry)
			return matchers
		}
	}
	return append(matchers, ClaudeHookMatcher{
		Matcher: "",
		Hooks:   []ClaudeHookEntry{entry},
	})
}

func isFocusHook(command string) bool {
	return strings.HasPrefix(command, focusHookPrefix)
}

// removeFocusHooks strips focus-owned hook entries, dropping matchers
// that end up empty. Other tools' hooks are untouched.
func removeFocusHooks(matchers []ClaudeHookMatcher) []ClaudeHookMatcher {
	result := make([]ClaudeHookMatcher, 0, len(matchers))
	for _, matcher := range matchers {
		filtered := make([]ClaudeHookEntry, 0, len(matcher.Hooks))
		for _, hook := range matcher.Hooks {
			if !isFocusHook(hook.Command) {
				filtered = append(filtered, hook)
			}
		}
		if len(filtered) > 0 {
			matcher.Hooks = filtered
			result = append(result, matcher)
		}
	}
	return result
}

func countFocusHooks(hooks *ClaudeHooks) int {
	count := 0
	for _, matchers := range [][]ClaudeHookMatcher{hooks.UserPromptSubmit, hooks.Stop} {
		for _, matcher := range matchers {
			for _, hook := range matcher.Hooks {
				if isFocusHook(hook.Command) {
					count++
				}
			}
		}
	}
	return count
}
