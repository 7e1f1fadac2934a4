package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultConfigFilename)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Providers, 2)
	assert.Equal(t, DefaultPrimaryModel, cfg.Providers[0].Model)
	assert.Equal(t, ":8000", cfg.Address())
	assert.Equal(t, 4, cfg.Evaluation.Window)
	assert.True(t, cfg.Evaluation.ScoreRepair.Enabled)
}

func TestLoadConfigYAML(t *testing.T) {
	t.Setenv("TEST_PROVIDER_KEY", "sk-from-env")

	path := writeConfig(t, `
listen:
  host: 127.0.0.1
  port: 9090
gateway:
  timeout: 15s
providers:
  - name: primary
    kind: openai
    model: gpt-test
    base_url: http://localhost:1234/v1
    api_key: ${TEST_PROVIDER_KEY}
    extra:
      enable_thinking: false
  - name: local
    kind: ollama
    model: qwen3:4b
    base_url: http://localhost:11434
evaluation:
  window: 6
  score_repair:
    enabled: false
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Address())
	assert.Equal(t, 15*time.Second, cfg.Gateway.Timeout)
	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "sk-from-env", cfg.Providers[0].APIKey)
	assert.Equal(t, false, cfg.Providers[0].Extra["enable_thinking"])
	assert.Equal(t, ProviderOllama, cfg.Providers[1].Kind)
	assert.Equal(t, 6, cfg.Evaluation.Window)
	assert.False(t, cfg.Evaluation.ScoreRepair.Enabled)
	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultMaxTokens, cfg.Gateway.MaxTokens)
}

func TestLoadConfigEnvFallback(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvLegacyAPIKey, "sk-legacy")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	for _, p := range cfg.Providers {
		assert.Equal(t, "sk-legacy", p.APIKey, p.Name)
	}
	assert.Equal(t, "sk-legacy", cfg.Transcription.APIKey)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no providers", func(c *Config) { c.Providers = nil }},
		{"unknown kind", func(c *Config) { c.Providers[0].Kind = "bedrock" }},
		{"empty model", func(c *Config) { c.Providers[0].Model = "" }},
		{"duplicate names", func(c *Config) { c.Providers[1].Name = c.Providers[0].Name }},
		{"bad port", func(c *Config) { c.Listen.Port = 70000 }},
		{"zero window", func(c *Config) { c.Evaluation.Window = 0 }},
		{"zero timeout", func(c *Config) { c.Gateway.Timeout = 0 }},
		{"zero shards", func(c *Config) { c.Store.Shards = 0 }},
		{"repair bump above 100", func(c *Config) { c.Evaluation.ScoreRepair.Bumped = 150 }},
		{"negative repair default", func(c *Config) { c.Evaluation.ScoreRepair.ZeroDefault = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateFillsProviderDefaults(t *testing.T) {
	cfg := Default()
	cfg.Providers = []ProviderConfig{{Model: "m1"}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "m1", cfg.Providers[0].Name)
	assert.Equal(t, ProviderOpenAI, cfg.Providers[0].Kind)
}

func TestFindConfig(t *testing.T) {
	_, err := FindConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeConfig(t, "listen:\n  port: 8001\n")
	found, err := FindConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestParseInvalidYAML(t *testing.T) {
	err := Parse([]byte("listen: [unterminated"), Default())
	assert.Error(t, err)
}
