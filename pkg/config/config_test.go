package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wordbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
suite: nightly
models:
  - openai/gpt-4o
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "nightly", cfg.Suite)
	assert.Equal(t, []string{"openai/gpt-4o"}, cfg.Models)
	assert.Equal(t, DefaultRepeats, cfg.Repeats)
	assert.Equal(t, DefaultMaxSteps, cfg.MaxSteps)
	assert.Equal(t, DefaultMaxInvalidActions, cfg.MaxInvalidActions)
	assert.Equal(t, DefaultMaxTokens, cfg.MaxTokens)
	assert.Equal(t, 15*time.Minute, cfg.RunTimeout())
	assert.Equal(t, 2*time.Minute, cfg.StepTimeout())
	assert.Equal(t, "runs", cfg.Trace.Dir)
	assert.Equal(t, CompressionAuto, cfg.Trace.Compression)
	assert.Equal(t, DefaultCompressionThreshold, cfg.Trace.CompressionThreshold)
	assert.Equal(t, "OPENROUTER_API_KEY", cfg.Provider.APIKeyEnv)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
suite: weekly
models:
  - openai/gpt-4o
  - anthropic/claude-sonnet-4
repeats: 3
temperature: 0.2
max_tokens: 1024
max_steps: 60
run_timeout_ms: 600000
step_timeout_ms: 60000
max_invalid_actions: 5
crossword:
  allow_checks: false
  allow_reveals: false
trace:
  dir: /tmp/traces
  compression: always
  compression_threshold_bytes: 1024
provider:
  base_url: https://example.test/api/v1
  api_key_env: MY_KEY
  network_log_dir: /tmp/netlog
events:
  nats_url: nats://localhost:4222
  nats_subject: bench.events
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, cfg.Models, 2)
	assert.Equal(t, 3, cfg.Repeats)
	assert.Equal(t, 0.2, cfg.Temperature)
	assert.Equal(t, 1024, cfg.MaxTokens)
	assert.Equal(t, 60, cfg.MaxSteps)
	assert.Equal(t, 10*time.Minute, cfg.RunTimeout())
	assert.Equal(t, time.Minute, cfg.StepTimeout())
	assert.Equal(t, 5, cfg.MaxInvalidActions)
	assert.False(t, cfg.Crossword.AllowChecks)
	assert.Equal(t, CompressionAlways, cfg.Trace.Compression)
	assert.Equal(t, 1024, cfg.Trace.CompressionThreshold)
	assert.Equal(t, "https://example.test/api/v1", cfg.Provider.BaseURL)
	assert.Equal(t, "MY_KEY", cfg.Provider.APIKeyEnv)
	assert.Equal(t, "nats://localhost:4222", cfg.Events.NATSURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Models = []string{"m1"}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no_suite", func(c *Config) { c.Suite = "" }, "suite name"},
		{"no_models", func(c *Config) { c.Models = nil }, "at least one model"},
		{"empty_model", func(c *Config) { c.Models = []string{""} }, "empty model id"},
		{"duplicate_model", func(c *Config) { c.Models = []string{"m1", "m1"} }, "duplicate model id"},
		{"bad_compression", func(c *Config) { c.Trace.Compression = "zstd" }, "trace.compression"},
		{"step_exceeds_run", func(c *Config) { c.StepTimeoutMs = c.RunTimeoutMs + 1 }, "exceeds run_timeout_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
suite: nightly
models: []
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "at least one model")
}
