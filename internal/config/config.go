// Package config provides configuration loading for breakdesk.
//
// Configuration comes from a YAML file (breakdesk.yaml) with
// BREAKDESK_-prefixed environment variable overrides. The category
// set, break timings, penalty amount and storage backend all live
// here; the defaults reproduce the classic floor rules (15 minute
// breaks, 5 minute grace, four categories).
package config

import (
	"fmt"
	"time"
)

// Storage backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config is the top-level configuration for breakdesk.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Break configures session timings and the fine amount.
	Break BreakConfig `yaml:"break" mapstructure:"break"`

	// Stats configures the reporting window.
	Stats StatsConfig `yaml:"stats" mapstructure:"stats"`

	// Storage selects and configures the session store backend.
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Categories defines the break categories and their concurrency
	// limits. Fixed for a run.
	Categories []CategoryConfig `yaml:"categories" mapstructure:"categories" validate:"min=1,dive"`

	// DevMode enables development features (verbose logging).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// HTTPAddr is the listen address, e.g. ":8484".
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"required"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// BreakConfig configures the session state machine timings.
type BreakConfig struct {
	// Duration is the nominal break allowance, e.g. "15m".
	Duration string `yaml:"duration" mapstructure:"duration" validate:"omitempty,duration"`
	// GracePeriod is the overdue escalation reminder delay, e.g. "5m".
	GracePeriod string `yaml:"grace_period" mapstructure:"grace_period" validate:"omitempty,duration"`
	// PenaltyAmount is the fixed fine applied on a rejected verdict.
	PenaltyAmount int `yaml:"penalty_amount" mapstructure:"penalty_amount" validate:"min=0"`
}

// StatsConfig configures the statistics aggregator.
type StatsConfig struct {
	// Window is the reporting window, e.g. "24h".
	Window string `yaml:"window" mapstructure:"window" validate:"omitempty,duration"`
}

// StorageConfig selects the session store backend.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend" mapstructure:"backend" validate:"required,oneof=memory sqlite"`
	// Path is the SQLite database file; required for the sqlite backend.
	Path string `yaml:"path" mapstructure:"path"`
}

// CategoryConfig is one break category.
type CategoryConfig struct {
	Name     string `yaml:"name" mapstructure:"name" validate:"required"`
	Capacity int    `yaml:"capacity" mapstructure:"capacity" validate:"min=0"`
}

// Default returns the built-in configuration: the four classic
// categories, 15 minute allowance, 5 minute grace, in-memory storage.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: ":8484",
			LogLevel: "info",
		},
		Break: BreakConfig{
			Duration:      "15m",
			GracePeriod:   "5m",
			PenaltyAmount: 100,
		},
		Stats: StatsConfig{
			Window: "24h",
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
		},
		Categories: []CategoryConfig{
			{Name: "Drink", Capacity: 2},
			{Name: "Toilet", Capacity: 2},
			{Name: "Shopping/Smoking", Capacity: 4},
			{Name: "Prayer", Capacity: 2},
		},
	}
}

// BreakDuration parses Break.Duration. Validation guarantees the
// string parses; a zero value falls back to 15 minutes.
func (c *Config) BreakDuration() time.Duration {
	return parseDuration(c.Break.Duration, 15*time.Minute)
}

// GracePeriod parses Break.GracePeriod, defaulting to 5 minutes.
func (c *Config) GracePeriod() time.Duration {
	return parseDuration(c.Break.GracePeriod, 5*time.Minute)
}

// StatsWindow parses Stats.Window, defaulting to 24 hours.
func (c *Config) StatsWindow() time.Duration {
	return parseDuration(c.Stats.Window, 24*time.Hour)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// validateStorage enforces the cross-field rule that the sqlite
// backend needs a path.
func (c *Config) validateStorage() error {
	if c.Storage.Backend == BackendSQLite && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required when storage.backend is %q", BackendSQLite)
	}
	return nil
}
