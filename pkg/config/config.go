// Package config loads and validates the suite configuration: which models
// run, run/step budgets, grid-game rule flags, and trace persistence policy.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Compression policies for step trace files.
const (
	CompressionNever  = "never"
	CompressionAuto   = "auto"
	CompressionAlways = "always"
)

// Default budget values.
const (
	DefaultRepeats              = 1
	DefaultMaxSteps             = 40
	DefaultRunTimeoutMs         = 15 * 60 * 1000
	DefaultStepTimeoutMs        = 2 * 60 * 1000
	DefaultMaxInvalidActions    = 10
	DefaultMaxTokens            = 2048
	DefaultCompressionThreshold = 256 * 1024
)

// Config is the complete, immutable suite configuration.
type Config struct {
	Suite       string   `yaml:"suite"`
	Models      []string `yaml:"models"`
	Repeats     int      `yaml:"repeats"`
	Temperature float64  `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`

	MaxSteps          int `yaml:"max_steps"`
	RunTimeoutMs      int `yaml:"run_timeout_ms"`
	StepTimeoutMs     int `yaml:"step_timeout_ms"`
	MaxInvalidActions int `yaml:"max_invalid_actions"`

	Crossword CrosswordConfig `yaml:"crossword"`
	Trace     TraceConfig     `yaml:"trace"`
	Provider  ProviderConfig  `yaml:"provider"`
	Events    EventsConfig    `yaml:"events"`
}

// CrosswordConfig holds grid-game rule flags.
type CrosswordConfig struct {
	AllowChecks  bool `yaml:"allow_checks"`
	AllowReveals bool `yaml:"allow_reveals"`
}

// TraceConfig controls run trace persistence.
type TraceConfig struct {
	Dir                  string `yaml:"dir"`
	Compression          string `yaml:"compression"` // never | auto | always
	CompressionThreshold int    `yaml:"compression_threshold_bytes"`
}

// ProviderConfig points at the model gateway.
type ProviderConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIKeyEnv     string `yaml:"api_key_env"`
	NetworkLogDir string `yaml:"network_log_dir"`
}

// EventsConfig enables the optional NATS event mirror.
type EventsConfig struct {
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`
}

// DefaultConfig returns a config with defaults applied and no models.
func DefaultConfig() *Config {
	return &Config{
		Suite:             "wordbench",
		Repeats:           DefaultRepeats,
		MaxSteps:          DefaultMaxSteps,
		RunTimeoutMs:      DefaultRunTimeoutMs,
		StepTimeoutMs:     DefaultStepTimeoutMs,
		MaxInvalidActions: DefaultMaxInvalidActions,
		MaxTokens:         DefaultMaxTokens,
		Crossword:         CrosswordConfig{AllowChecks: true},
		Trace: TraceConfig{
			Dir:                  "runs",
			Compression:          CompressionAuto,
			CompressionThreshold: DefaultCompressionThreshold,
		},
		Provider: ProviderConfig{
			APIKeyEnv: "OPENROUTER_API_KEY",
		},
	}
}

// Load reads a YAML config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Repeats <= 0 {
		c.Repeats = DefaultRepeats
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.RunTimeoutMs <= 0 {
		c.RunTimeoutMs = DefaultRunTimeoutMs
	}
	if c.StepTimeoutMs <= 0 {
		c.StepTimeoutMs = DefaultStepTimeoutMs
	}
	if c.MaxInvalidActions <= 0 {
		c.MaxInvalidActions = DefaultMaxInvalidActions
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Trace.Dir == "" {
		c.Trace.Dir = "runs"
	}
	if c.Trace.Compression == "" {
		c.Trace.Compression = CompressionAuto
	}
	if c.Trace.CompressionThreshold <= 0 {
		c.Trace.CompressionThreshold = DefaultCompressionThreshold
	}
	if c.Provider.APIKeyEnv == "" {
		c.Provider.APIKeyEnv = "OPENROUTER_API_KEY"
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Suite == "" {
		return fmt.Errorf("suite name is required")
	}
	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model is required")
	}
	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if m == "" {
			return fmt.Errorf("empty model id in models list")
		}
		if seen[m] {
			return fmt.Errorf("duplicate model id %q", m)
		}
		seen[m] = true
	}
	switch c.Trace.Compression {
	case CompressionNever, CompressionAuto, CompressionAlways:
	default:
		return fmt.Errorf("trace.compression must be never, auto, or always; got %q", c.Trace.Compression)
	}
	if c.StepTimeoutMs > c.RunTimeoutMs {
		return fmt.Errorf("step_timeout_ms (%d) exceeds run_timeout_ms (%d)", c.StepTimeoutMs, c.RunTimeoutMs)
	}
	return nil
}

// RunTimeout returns the per-run wall-clock budget.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutMs) * time.Millisecond
}

// StepTimeout returns the per-step agent call budget.
func (c *Config) StepTimeout() time.Duration {
	return time.Duration(c.StepTimeoutMs) * time.Millisecond
}
