package paths

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Config directory layout under ~/.config/simon
const (
	ConfigDirName         = "simon"
	ConfigFileName        = "config.toml"
	ActiveProjectFileName = "active_project.json"
	WorkerPIDFileName     = "worker.pid"
	VersionCacheFileName  = "version_check.json"
	LogDirName            = "logs"
	LogFileName           = "focus.log"
)

// Claude Code directory layout under ~/.claude
const (
	ClaudeSettingsFileName = "settings.json"
	ClaudeProjectsDirName  = "projects"
	ClaudeSkillsDirName    = "skills"
	SkillFileName          = "SKILL.md"
)

// Environment overrides
const (
	// EnvConfigDir overrides the config directory (useful in tests).
	EnvConfigDir = "SIMON_CONFIG_DIR"
	// EnvConfigFile overrides the config file path directly.
	EnvConfigFile = "SIMON_CONFIG"
	// EnvClaudeDir overrides the Claude Code home directory.
	EnvClaudeDir = "FOCUS_TEST_CLAUDE_DIR"
)

// ConfigDir returns the focus configuration directory (~/.config/simon).
// Set SIMON_CONFIG_DIR to override the default location.
func ConfigDir() (string, error) {
	if override := os.Getenv(EnvConfigDir); override != "" {
		return override, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", ConfigDirName), nil
}

// ConfigFile returns the path to config.toml.
// Set SIMON_CONFIG to override the path directly.
func ConfigFile() (string, error) {
	if override := os.Getenv(EnvConfigFile); override != "" {
		return override, nil
	}

	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// ActiveProjectFile returns the path to the explicit project selection state.
func ActiveProjectFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ActiveProjectFileName), nil
}

// WorkerPIDFile returns the path to the background worker's PID file.
func WorkerPIDFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, WorkerPIDFileName), nil
}

// VersionCacheFile returns the path to the version check cache.
func VersionCacheFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, VersionCacheFileName), nil
}

// LogFile returns the path to the shared log file used by hook invocations.
func LogFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, LogDirName, LogFileName), nil
}

// ClaudeDir returns the Claude Code home directory (~/.claude).
//
// In test environments, set FOCUS_TEST_CLAUDE_DIR to override the default location.
func ClaudeDir() (string, error) {
	if override := os.Getenv(EnvClaudeDir); override != "" {
		return override, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".claude"), nil
}

// ClaudeSettingsFile returns the path to Claude Code's settings.json,
// where hooks are registered.
func ClaudeSettingsFile() (string, error) {
	dir, err := ClaudeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ClaudeSettingsFileName), nil
}

// ClaudeProjectsDir returns the directory where Claude Code stores
// per-project session transcripts.
func ClaudeProjectsDir() (string, error) {
	dir, err := ClaudeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ClaudeProjectsDirName), nil
}

// PersonalSkillsDir returns the personal skills directory (~/.claude/skills).
func PersonalSkillsDir() (string, error) {
	dir, err := ClaudeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ClaudeSkillsDirName), nil
}

// ProjectSkillsDir returns the project-scoped skills directory for a workspace.
func ProjectSkillsDir(projectPath string) string {
	return filepath.Join(projectPath, ".claude", ClaudeSkillsDirName)
}

// nonAlphanumericRegex matches any non-alphanumeric character
var nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z0-9]`)

// SanitizePathForClaude converts a path to Claude's project directory format.
// Claude replaces any non-alphanumeric character with a dash.
func SanitizePathForClaude(path string) string {
	return nonAlphanumericRegex.ReplaceAllString(path, "-")
}

// ClaudeProjectDirFor returns the directory where Claude Code stores session
// transcripts for the given workspace path.
func ClaudeProjectDirFor(workspacePath string) (string, error) {
	projects, err := ClaudeProjectsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(projects, SanitizePathForClaude(workspacePath)), nil
}

// SessionIDFromTranscriptPath extracts the session ID from a transcript path.
// Claude Code stores transcripts as ~/.claude/projects/<project>/<session-id>.jsonl,
// so the session ID is the filename without extension.
func SessionIDFromTranscriptPath(transcriptPath string) string {
	base := filepath.Base(transcriptPath)
	return strings.TrimSuffix(base, ".jsonl")
}

// ValidateSessionID validates that a session ID is non-empty and doesn't contain path separators.
func ValidateSessionID(id string) error {
	if id == "" {
		return errors.New("session ID cannot be empty")
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("invalid session ID %q: contains path separators", id)
	}
	return nil
}

// repoRootCache caches the repository root to avoid repeated git commands.
// The cache is keyed by the current working directory to handle directory changes.
var (
	repoRootMu       sync.RWMutex
	repoRootCache    string
	repoRootCacheDir string
)

// RepoRoot returns the git repository root directory.
// Uses 'git rev-parse --show-toplevel' which works from any subdirectory.
// The result is cached per working directory.
// Returns an error if not inside a git repository.
func RepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}

	repoRootMu.RLock()
	if repoRootCache != "" && repoRootCacheDir == cwd {
		cached := repoRootCache
		repoRootMu.RUnlock()
		return cached, nil
	}
	repoRootMu.RUnlock()

	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get git repository root: %w", err)
	}

	root := strings.TrimSpace(string(output))

	repoRootMu.Lock()
	repoRootCache = root
	repoRootCacheDir = cwd
	repoRootMu.Unlock()

	return root, nil
}

// ClearRepoRootCache clears the cached repository root.
// This is primarily useful for testing when changing directories.
func ClearRepoRootCache() {
	repoRootMu.Lock()
	repoRootCache = ""
	repoRootCacheDir = ""
	repoRootMu.Unlock()
}

// RepoRootOr returns the git repository root directory, or the fallback
// if not inside a git repository.
func RepoRootOr(fallback string) string {
	root, err := RepoRoot()
	if err != nil {
		return fallback
	}
	return root
}
