// Package config provides configuration loading, defaults, and validation for the interviewer service.
package config

import (
	"fmt"
	"time"
)

// Provider kinds understood by the gateway.
const (
	ProviderOpenAI    = "openai" // any OpenAI-compatible chat completions endpoint
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// Defaults mirror the hosted deployment this service was first built against.
const (
	DefaultBaseURL         = "https://api.siliconflow.cn/v1"
	DefaultPrimaryModel    = "zai-org/GLM-4.6"
	DefaultSecondaryModel  = "Qwen/Qwen3-Next-80B-A3B-Instruct"
	DefaultTranscribeModel = "FunAudioLLM/SenseVoiceSmall"

	DefaultPort            = 8000
	DefaultProviderTimeout = 60 * time.Second
	DefaultTemperature     = 0.3
	DefaultMaxTokens       = 4096

	DefaultEvalWindow      = 4
	DefaultEvalTemperature = 0.01
	DefaultEvalTimeout     = 30 * time.Second

	DefaultStoreShards     = 16
	DefaultShutdownTimeout = 10 * time.Second
)

// Environment variables consulted after the file is loaded.
const (
	EnvAPIKey       = "INTERVIEWER_API_KEY"
	EnvLegacyAPIKey = "SILICONFLOW_API_KEY"
)

// Config holds all service configuration.
type Config struct {
	Listen          ListenConfig        `yaml:"listen"`
	Gateway         GatewayConfig       `yaml:"gateway"`
	Providers       []ProviderConfig    `yaml:"providers"`
	Evaluation      EvaluationConfig    `yaml:"evaluation"`
	Store           StoreConfig         `yaml:"store"`
	Journal         JournalConfig       `yaml:"journal"`
	Transcription   TranscriptionConfig `yaml:"transcription"`
	Log             LogConfig           `yaml:"log"`
	Metrics         MetricsConfig       `yaml:"metrics"`
	ShutdownTimeout time.Duration       `yaml:"shutdown_timeout"`
}

// ListenConfig defines the HTTP bind address.
type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// GatewayConfig holds request defaults applied to every provider attempt.
type GatewayConfig struct {
	Timeout     time.Duration `yaml:"timeout"` // per provider attempt
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

// ProviderConfig is one entry of the ordered fallback chain.
type ProviderConfig struct {
	Name    string         `yaml:"name"`
	Kind    string         `yaml:"kind"`
	Model   string         `yaml:"model"`
	BaseURL string         `yaml:"base_url"`
	APIKey  string         `yaml:"api_key"`
	Extra   map[string]any `yaml:"extra"` // merged into the request body
}

// EvaluationConfig controls the background plan evaluator.
type EvaluationConfig struct {
	Window      int               `yaml:"window"` // trailing history messages sent to the evaluator
	Temperature float64           `yaml:"temperature"`
	Timeout     time.Duration     `yaml:"timeout"`
	ScoreRepair ScoreRepairConfig `yaml:"score_repair"`
}

// ScoreRepairConfig tunes the under-reported score heuristic.
type ScoreRepairConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Floor         int      `yaml:"floor"`
	Bumped        int      `yaml:"bumped"`
	ZeroDefault   int      `yaml:"zero_default"`
	PositiveWords []string `yaml:"positive_words"`
}

// StoreConfig tunes the in-memory plan store.
type StoreConfig struct {
	Shards int `yaml:"shards"`
}

// JournalConfig controls the SQLite evaluation journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // empty means an in-memory database
}

// TranscriptionConfig controls audio transcription of spoken answers.
type TranscriptionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// LogConfig controls debug output.
type LogConfig struct {
	Debug   bool     `yaml:"debug"`
	Domains []string `yaml:"domains"`
}

// MetricsConfig points at the Prometheus server that scrapes /metrics. When set,
// aggregated provider usage is served at /api/usage.
type MetricsConfig struct {
	PrometheusURL string `yaml:"prometheus_url"`
}

// Default returns a configuration usable with only an API key in the environment.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: DefaultPort},
		Gateway: GatewayConfig{
			Timeout:     DefaultProviderTimeout,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		},
		Providers: []ProviderConfig{
			{Name: "GLM-4.6", Kind: ProviderOpenAI, Model: DefaultPrimaryModel, BaseURL: DefaultBaseURL},
			{Name: "Qwen3-Next-80B", Kind: ProviderOpenAI, Model: DefaultSecondaryModel, BaseURL: DefaultBaseURL},
		},
		Evaluation: EvaluationConfig{
			Window:      DefaultEvalWindow,
			Temperature: DefaultEvalTemperature,
			Timeout:     DefaultEvalTimeout,
			ScoreRepair: DefaultScoreRepair(),
		},
		Store:   StoreConfig{Shards: DefaultStoreShards},
		Journal: JournalConfig{Enabled: true},
		Transcription: TranscriptionConfig{
			Enabled: true,
			Model:   DefaultTranscribeModel,
			BaseURL: DefaultBaseURL,
		},
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// DefaultScoreRepair returns the score repair rule the evaluator ships with.
func DefaultScoreRepair() ScoreRepairConfig {
	return ScoreRepairConfig{
		Enabled:       true,
		Floor:         60,
		Bumped:        70,
		ZeroDefault:   60,
		PositiveWords: []string{"good", "correct"},
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port must be between 1 and 65535, got %d", c.Listen.Port)
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("providers: at least one provider is required")
	}
	seen := make(map[string]bool, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.Model == "" {
			return fmt.Errorf("providers[%d]: model cannot be empty", i)
		}
		if p.Name == "" {
			p.Name = p.Model
		}
		if seen[p.Name] {
			return fmt.Errorf("providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true
		switch p.Kind {
		case ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderOllama:
		case "":
			p.Kind = ProviderOpenAI
		default:
			return fmt.Errorf("providers[%d]: unknown kind %q", i, p.Kind)
		}
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway.timeout must be positive")
	}
	if c.Gateway.MaxTokens <= 0 {
		return fmt.Errorf("gateway.max_tokens must be positive")
	}
	if c.Gateway.Temperature < 0 || c.Gateway.Temperature > 2 {
		return fmt.Errorf("gateway.temperature must be between 0.0 and 2.0")
	}
	if c.Evaluation.Window <= 0 {
		return fmt.Errorf("evaluation.window must be positive, got %d", c.Evaluation.Window)
	}
	if r := c.Evaluation.ScoreRepair; r.Enabled {
		for name, v := range map[string]int{"floor": r.Floor, "bumped": r.Bumped, "zero_default": r.ZeroDefault} {
			if v < 0 || v > 100 {
				return fmt.Errorf("evaluation.score_repair.%s must be between 0 and 100, got %d", name, v)
			}
		}
	}
	if c.Store.Shards <= 0 {
		return fmt.Errorf("store.shards must be positive, got %d", c.Store.Shards)
	}
	return nil
}

// Address returns host:port for the HTTP listener.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Listen.Host, c.Listen.Port)
}
