package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFilename is looked up in the working directory and ~/.config/interviewer.
const DefaultConfigFilename = "interviewer.yaml"

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// SearchPaths returns the config file search order used when no explicit path is given.
func SearchPaths() []string {
	paths := []string{DefaultConfigFilename}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "interviewer", DefaultConfigFilename))
	}
	return paths
}

// FindConfig locates a config file. An explicit path must exist; otherwise the first
// existing search path is returned, or "" when none exists (defaults apply).
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range SearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// LoadConfig reads a YAML file over Default(), substitutes ${VAR} placeholders,
// applies environment fallbacks, and validates the result. An empty path yields
// the defaults with environment fallbacks applied.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg after ${VAR} substitution. Placeholders naming
// unset variables are left as-is.
func Parse(data []byte, cfg *Config) error {
	expanded := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
		if value := os.Getenv(match[2 : len(match)-1]); value != "" {
			return value
		}
		return match
	})

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}

// applyEnvOverrides fills empty provider and transcription keys from the environment.
func applyEnvOverrides(cfg *Config) {
	key := os.Getenv(EnvAPIKey)
	if key == "" {
		key = os.Getenv(EnvLegacyAPIKey)
	}
	if key == "" {
		return
	}
	for i := range cfg.Providers {
		if cfg.Providers[i].APIKey == "" && cfg.Providers[i].Kind != ProviderOllama {
			cfg.Providers[i].APIKey = key
		}
	}
	if cfg.Transcription.APIKey == "" {
		cfg.Transcription.APIKey = key
	}
}
