// Package settings provides configuration loading for focus.
// This package is separate from cli so that worker, retrieval, and skills
// packages can import it without creating an import cycle.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/simonhq/focus/cmd/focus/cli/paths"
)

// Environment overrides applied after the config file is read.
const (
	EnvDatabaseURL     = "FOCUS_DB_URL"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvGitHubToken     = "GITHUB_TOKEN"
)

// DefaultModel is the model used for turn summaries, session summaries,
// and skill generation unless overridden in config.toml.
const DefaultModel = "claude-haiku-4-5-20251001"

// GeneralSettings holds top-level configuration.
type GeneralSettings struct {
	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string `toml:"db_url"`

	// LogLevel sets the logging verbosity (debug, info, warn, error).
	// Can be overridden by the FOCUS_LOG_LEVEL environment variable.
	LogLevel string `toml:"log_level"`

	// Telemetry controls anonymous usage analytics.
	// nil = not asked yet (show prompt), true = opted in, false = opted out
	Telemetry *bool `toml:"telemetry,omitempty"`
}

// AnthropicSettings holds Anthropic API configuration.
type AnthropicSettings struct {
	// APIKey authenticates LLM calls. Usually set via ANTHROPIC_API_KEY.
	APIKey string `toml:"api_key"`

	// Model is the default model for LLM calls.
	Model string `toml:"model"`
}

// ContextSettings holds configuration for context recording and retrieval.
type ContextSettings struct {
	Enabled          bool `toml:"enabled"`
	RetrievalEnabled bool `toml:"retrieval_enabled"`
	RecordingEnabled bool `toml:"recording_enabled"`

	// RetrievalTimeoutMs bounds the UserPromptSubmit hook path.
	RetrievalTimeoutMs int `toml:"retrieval_timeout_ms"`

	// RecordingTimeoutMs bounds the Stop hook enqueue path.
	RecordingTimeoutMs int `toml:"recording_timeout_ms"`

	// MaxContextTokens is the token budget for injected context.
	MaxContextTokens int `toml:"max_context_tokens"`

	TurnSummaryModel    string `toml:"turn_summary_model"`
	SessionSummaryModel string `toml:"session_summary_model"`

	// WorkerPollInterval is the worker sleep in seconds when the queue is empty.
	WorkerPollInterval float64 `toml:"worker_poll_interval"`

	// RedactSecrets controls whether injected context is scrubbed for
	// credentials before being handed to the agent. Stored data is never
	// modified; redaction happens on the way out.
	RedactSecrets bool `toml:"redact_secrets"`
}

// SkillSettings holds configuration for the skills system.
type SkillSettings struct {
	AutoGenerate         bool    `toml:"auto_generate"`
	MinQualityScore      float64 `toml:"min_quality_score"`
	DefaultScope         string  `toml:"default_scope"`
	MaxAutoSkillsPerDay  int     `toml:"max_auto_skills_per_day"`
	SkillGenerationModel string  `toml:"skill_generation_model"`

	// GitHubToken authorizes registry requests. Usually set via GITHUB_TOKEN.
	GitHubToken string `toml:"github_token"`
}

// Settings represents the ~/.config/simon/config.toml configuration.
type Settings struct {
	General   GeneralSettings   `toml:"general"`
	Anthropic AnthropicSettings `toml:"anthropic"`
	Context   ContextSettings   `toml:"context"`
	Skills    SkillSettings     `toml:"skills"`
}

// Defaults returns the settings used when no config file exists.
func Defaults() *Settings {
	return &Settings{
		General: GeneralSettings{
			DatabaseURL: "postgres://localhost/simon?sslmode=disable",
			LogLevel:    "INFO",
		},
		Anthropic: AnthropicSettings{
			Model: DefaultModel,
		},
		Context: ContextSettings{
			Enabled:             true,
			RetrievalEnabled:    true,
			RecordingEnabled:    true,
			RetrievalTimeoutMs:  2000,
			RecordingTimeoutMs:  200,
			MaxContextTokens:    1500,
			TurnSummaryModel:    DefaultModel,
			SessionSummaryModel: DefaultModel,
			WorkerPollInterval:  2.0,
			RedactSecrets:       true,
		},
		Skills: SkillSettings{
			AutoGenerate:         true,
			MinQualityScore:      0.6,
			DefaultScope:         "personal",
			MaxAutoSkillsPerDay:  3,
			SkillGenerationModel: DefaultModel,
		},
	}
}

// Load loads settings from ~/.config/simon/config.toml.
// Returns defaults if the file doesn't exist. Fields absent from the file
// keep their default values, and environment overrides are applied last.
func Load() (*Settings, error) {
	configFile, err := paths.ConfigFile()
	if err != nil {
		return nil, err
	}

	settings := Defaults()

	data, err := os.ReadFile(configFile) //nolint:gosec // path is from paths.ConfigFile
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file, use defaults
	} else {
		// Unmarshal into the pre-populated struct so missing keys
		// keep their defaults.
		if err := toml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(settings)
	applyDefaults(settings)

	return settings, nil
}

// Save writes settings to ~/.config/simon/config.toml, creating the
// config directory if needed.
func Save(settings *Settings) error {
	configFile, err := paths.ConfigFile()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variables over file values.
func applyEnvOverrides(settings *Settings) {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		settings.General.DatabaseURL = v
	}
	if v := os.Getenv(EnvAnthropicAPIKey); v != "" {
		settings.Anthropic.APIKey = v
	}
	if v := os.Getenv(EnvGitHubToken); v != "" {
		settings.Skills.GitHubToken = v
	}
}

func applyDefaults(settings *Settings) {
	if settings.General.DatabaseURL == "" {
		settings.General.DatabaseURL = "postgres://localhost/simon?sslmode=disable"
	}
	if settings.Anthropic.Model == "" {
		settings.Anthropic.Model = DefaultModel
	}
	if settings.Context.TurnSummaryModel == "" {
		settings.Context.TurnSummaryModel = settings.Anthropic.Model
	}
	if settings.Context.SessionSummaryModel == "" {
		settings.Context.SessionSummaryModel = settings.Anthropic.Model
	}
	if settings.Skills.SkillGenerationModel == "" {
		settings.Skills.SkillGenerationModel = settings.Anthropic.Model
	}
	if settings.Skills.DefaultScope == "" {
		settings.Skills.DefaultScope = "personal"
	}
}

// IsRetrievalEnabled reports whether context injection should run at all.
func (s *Settings) IsRetrievalEnabled() bool {
	return s.Context.Enabled && s.Context.RetrievalEnabled
}

// IsRecordingEnabled reports whether session recording should run at all.
func (s *Settings) IsRecordingEnabled() bool {
	return s.Context.Enabled && s.Context.RecordingEnabled
}
