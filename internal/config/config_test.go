// ABOUTME: Tests for YAML configuration loading and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	if cfg.Server.MetricsPort != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Store.Path != "policystore.db" {
		t.Errorf("Expected policystore.db, got %s", cfg.Store.Path)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected info, got %s", cfg.Log.Level)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  metricsPort: 8080
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if cfg.Server.MetricsPort != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected debug, got %s", cfg.Log.Level)
	}
	// Unset fields keep defaults
	if cfg.Store.Path != "policystore.db" {
		t.Errorf("Expected default store path, got %s", cfg.Store.Path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.MetricsPort = 0 }},
		{"huge port", func(c *Config) { c.Server.MetricsPort = 70000 }},
		{"empty store path", func(c *Config) { c.Store.Path = "" }},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
