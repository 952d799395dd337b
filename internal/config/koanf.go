package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tripnotes/spotrank/internal/provider"
	"github.com/tripnotes/spotrank/pkg/models"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"spotrank.yaml",
	"spotrank.yml",
	"/etc/spotrank/config.yaml",
	"/etc/spotrank/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "SPOTRANK_CONFIG"

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Enabled:  true,
			Required: false,
			BaseURL:  provider.DefaultBaseURL,
			APIKey:   "",
			Model:    provider.DefaultModel,
			Timeout:  provider.DefaultTimeout,
		},
		Database: DatabaseConfig{
			DSN:      "spotrank.db",
			MaxConns: 4,
		},
		Jobs: JobsConfig{
			IntervalHours:     1,
			UserIntervalHours: 1,
			Workers:           4,
		},
		Heuristic: *models.DefaultHeuristicConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so random environment does not pollute
// the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"openai_api_key":          "provider.api_key",
		"openai_base_url":         "provider.base_url",
		"openai_model":            "provider.model",
		"openai_timeout":          "provider.timeout",
		"provider_enabled":        "provider.enabled",
		"provider_required":       "provider.required",
		"database_dsn":            "database.dsn",
		"database_max_conns":      "database.max_conns",
		"job_interval_hours":      "jobs.interval_hours",
		"job_user_interval_hours": "jobs.user_interval_hours",
		"job_workers":             "jobs.workers",
		"log_level":               "logging.level",
		"log_format":              "logging.format",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
