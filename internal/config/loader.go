package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and
// environment variables. If configFile is empty, it searches for
// breakdesk.yaml/.yml in standard locations.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location. Set name/type
		// without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("breakdesk")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: BREAKDESK_SERVER_HTTP_ADDR
	viper.SetEnvPrefix("BREAKDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a breakdesk config
// file with an explicit YAML extension.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".breakdesk"),
		"/etc/breakdesk",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "breakdesk"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested config keys for environment variable
// support. Example: BREAKDESK_BREAK_DURATION overrides break.duration.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.http_addr")
	_ = viper.BindEnv("server.log_level")

	_ = viper.BindEnv("break.duration")
	_ = viper.BindEnv("break.grace_period")
	_ = viper.BindEnv("break.penalty_amount")

	_ = viper.BindEnv("stats.window")

	_ = viper.BindEnv("storage.backend")
	_ = viper.BindEnv("storage.path")

	// Note: categories is an array; override via config file only.
}

// LoadConfig reads and validates the effective configuration.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration without validating, so the
// CLI can apply flag overrides first. A missing config file is not an
// error; defaults apply.
func LoadConfigRaw() (*Config, error) {
	cfg := Default()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// ConfigFileUsed returns the path of the config file Viper loaded, if
// any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
