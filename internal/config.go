package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FilterPolicy selects what the boundary filter does when the AI capability
// fails or returns an unusable decision.
type FilterPolicy string

const (
	// PolicyConservative returns the full candidate list on failure.
	// Under-filtering is safer than losing a developer's work history.
	PolicyConservative FilterPolicy = "conservative"
	// PolicyAggressive returns nothing on failure, for callers who prefer
	// precision over recall.
	PolicyAggressive FilterPolicy = "aggressive"
)

// AIConfig configures the boundary-filter model invocation.
type AIConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	Timeout      time.Duration `yaml:"timeout"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	MaxRetries   int           `yaml:"max_retries"`
}

// Config carries every tunable the pipeline reads. Components never touch
// process environment themselves; env overrides are applied here, once.
type Config struct {
	// WorkspaceOverride bypasses platform auto-discovery entirely when set.
	WorkspaceOverride string `yaml:"workspace_override"`

	FilterPolicy FilterPolicy `yaml:"filter_policy"`

	// RecencyWindow bounds the mtime filter over store chunks. A heuristic
	// tuned against Cursor's ~100-generation rotation; tunable, not an
	// invariant.
	RecencyWindow time.Duration `yaml:"recency_window"`

	MaxUserMessages      int `yaml:"max_user_messages"`
	MaxAssistantMessages int `yaml:"max_assistant_messages"`

	// QueryTimeout guards individual store opens/queries. Normal queries
	// finish in milliseconds; this is a ceiling for stuck handles.
	QueryTimeout time.Duration `yaml:"query_timeout"`

	// ValidityTTL controls how long a workspace validity verdict is cached.
	ValidityTTL time.Duration `yaml:"validity_ttl"`

	AI AIConfig `yaml:"ai"`

	TelemetryEnabled bool `yaml:"telemetry_enabled"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		FilterPolicy:         PolicyConservative,
		RecencyWindow:        48 * time.Hour,
		MaxUserMessages:      200,
		MaxAssistantMessages: 200,
		QueryTimeout:         5 * time.Second,
		ValidityTTL:          5 * time.Minute,
		AI: AIConfig{
			BaseURL:    "http://localhost:11434",
			Model:      "qwen2.5-coder",
			Timeout:    30 * time.Second,
			RetryDelay: 2 * time.Second,
			MaxRetries: 1,
		},
	}
}

// LoadConfig builds a Config from defaults, an optional YAML file, and
// CURSOR_JOURNAL_* environment overrides, in that order.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.FilterPolicy != PolicyConservative && cfg.FilterPolicy != PolicyAggressive {
		return Config{}, fmt.Errorf("invalid filter policy %q (want %q or %q)",
			cfg.FilterPolicy, PolicyConservative, PolicyAggressive)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := envOverride("CURSOR_JOURNAL_WORKSPACE_PATH"); ok {
		cfg.WorkspaceOverride = v
	}
	if v, ok := envOverride("CURSOR_JOURNAL_FILTER_POLICY"); ok {
		cfg.FilterPolicy = FilterPolicy(v)
	}
	if v, ok := envOverride("CURSOR_JOURNAL_AI_BASE_URL"); ok {
		cfg.AI.BaseURL = v
	}
	if v, ok := envOverride("CURSOR_JOURNAL_AI_MODEL"); ok {
		cfg.AI.Model = v
	}
	if v, ok := envOverride("CURSOR_JOURNAL_RECENCY_WINDOW"); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RecencyWindow = d
		}
	}
	if v, ok := envOverride("CURSOR_JOURNAL_TELEMETRY"); ok && (v == "1" || v == "true") {
		cfg.TelemetryEnabled = true
	}
}

// envOverride reads one override variable, logging the application with
// the value scrubbed when the name looks credential-bearing.
func envOverride(name string) (string, bool) {
	v := os.Getenv(name)
	if v == "" {
		return "", false
	}
	slog.Debug("applying env override", "name", name, "value", RedactField(name, v))
	return v, true
}
