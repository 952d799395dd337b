// Package config provides configuration management for spotrank.
package config

import (
	"fmt"
	"time"

	"github.com/tripnotes/spotrank/pkg/models"
)

// Config holds the application configuration.
type Config struct {
	Provider  ProviderConfig         `koanf:"provider" json:"provider"`
	Database  DatabaseConfig         `koanf:"database" json:"database"`
	Jobs      JobsConfig             `koanf:"jobs" json:"jobs"`
	Heuristic models.HeuristicConfig `koanf:"heuristic" json:"heuristic"`
	Logging   LoggingConfig          `koanf:"logging" json:"logging"`
}

// ProviderConfig configures the external generative scoring provider.
type ProviderConfig struct {
	// Enabled controls whether the provider is called at all. When false,
	// every run scores through the local heuristic.
	Enabled bool `koanf:"enabled" json:"enabled"`
	// Required makes a missing API key a startup error instead of a silent
	// heuristic-only run.
	Required bool          `koanf:"required" json:"required"`
	BaseURL  string        `koanf:"base_url" json:"base_url"`
	APIKey   string        `koanf:"api_key" json:"api_key"`
	Model    string        `koanf:"model" json:"model"`
	Timeout  time.Duration `koanf:"timeout" json:"timeout"`
}

// DatabaseConfig configures persistence.
type DatabaseConfig struct {
	// DSN selects the backend: postgres:// URLs open PostgreSQL, anything
	// else is treated as a sqlite file path.
	DSN      string `koanf:"dsn" json:"dsn"`
	MaxConns int    `koanf:"max_conns" json:"max_conns"`
}

// JobsConfig configures run scheduling and parallelism.
type JobsConfig struct {
	// IntervalHours is the default interval seeded into new global-scope settings.
	IntervalHours uint `koanf:"interval_hours" json:"interval_hours"`
	// UserIntervalHours is the default interval seeded into new per-user settings.
	UserIntervalHours uint `koanf:"user_interval_hours" json:"user_interval_hours"`
	// Workers caps concurrent per-user scoring within one run.
	Workers int `koanf:"workers" json:"workers"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"` // "json" or "console"
}

// Validate checks the configuration for fatal misconfigurations.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Provider.Enabled && c.Provider.Required && c.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key is required when the provider is enabled and required")
	}
	if c.Jobs.IntervalHours == 0 {
		return fmt.Errorf("jobs.interval_hours must be positive")
	}
	if c.Jobs.UserIntervalHours == 0 {
		return fmt.Errorf("jobs.user_interval_hours must be positive")
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be positive")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
