// Package config loads parley configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all parley configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Where mode policy YAML files live
	ModesDir string `yaml:"modes_dir"`

	// Snapshot/transcript store
	Store StoreConfig `yaml:"store"`

	// Websocket observer
	Observer ObserverConfig `yaml:"observer"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the SQLite snapshot store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ObserverConfig configures the websocket event observer.
type ObserverConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Dir       string `yaml:"dir"`
	Level     string `yaml:"level"`
}

// Default returns a configuration with sensible defaults rooted at the
// given workspace directory.
func Default(workspace string) *Config {
	return &Config{
		Name:     "parley",
		Version:  "0.1.0",
		ModesDir: filepath.Join(workspace, "modes"),
		Store: StoreConfig{
			Path: filepath.Join(workspace, "parley.db"),
		},
		Observer: ObserverConfig{
			Addr: "127.0.0.1:7411",
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Dir:       filepath.Join(workspace, "logs"),
			Level:     "info",
		},
	}
}

// Load reads the config file at path, falling back to defaults for any
// missing section. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PARLEY_MODES_DIR"); v != "" {
		c.ModesDir = v
	}
	if v := os.Getenv("PARLEY_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("PARLEY_OBSERVER_ADDR"); v != "" {
		c.Observer.Addr = v
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PARLEY_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
	}
}
