// Package config loads PolicyStore configuration from YAML
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the serialisable server configuration. The zero value is not
// useful on its own; start from Default and overlay a file.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig holds the observability endpoint settings
type ServerConfig struct {
	MetricsPort int `yaml:"metricsPort"`
}

// StoreConfig holds the backing store settings
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level      string `yaml:"level"`
	Pretty     bool   `yaml:"pretty"`
	WithCaller bool   `yaml:"withCaller"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{MetricsPort: 9090},
		Store:  StoreConfig{Path: "policystore.db"},
		Log:    LogConfig{Level: "info", Pretty: true},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns an error describing invalid settings, or nil
func (c *Config) Validate() error {
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("server.metricsPort must be in 1..65535")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	return nil
}
