// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns the documented defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Cache.ProductsCapacity != 500 {
		t.Errorf("Cache.ProductsCapacity = %d, want 500", cfg.Cache.ProductsCapacity)
	}
	if cfg.Cache.BusinessesCapacity != 100 {
		t.Errorf("Cache.BusinessesCapacity = %d, want 100", cfg.Cache.BusinessesCapacity)
	}
	if cfg.Cache.ProductsByBusinessCapacity != 50 {
		t.Errorf("Cache.ProductsByBusinessCapacity = %d, want 50", cfg.Cache.ProductsByBusinessCapacity)
	}
	if cfg.Prefetch.BusinessesPerCategory != 2 || cfg.Prefetch.ProductsPerSubcategory != 2 {
		t.Errorf("Prefetch top-K = %d/%d, want 2/2",
			cfg.Prefetch.BusinessesPerCategory, cfg.Prefetch.ProductsPerSubcategory)
	}
	if cfg.Prefetch.MaxConcurrency != 4 {
		t.Errorf("Prefetch.MaxConcurrency = %d, want 4", cfg.Prefetch.MaxConcurrency)
	}
	if cfg.Queue.MaxReplayAttempts != 1 {
		t.Errorf("Queue.MaxReplayAttempts = %d, want 1", cfg.Queue.MaxReplayAttempts)
	}
	if !cfg.Queue.SyncWrites {
		t.Error("Queue.SyncWrites should be true by default")
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver = %q, want sqlite", cfg.Store.Driver)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want 127.0.0.1", cfg.API.Host)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"REMOTE_BASE_URL", "remote.base_url"},
		{"REMOTE_BREAKER_TIMEOUT", "remote.breaker.timeout"},
		{"CACHE_PRODUCTS_TTL", "cache.products_ttl"},
		{"STORE_DRIVER", "store.driver"},
		{"QUEUE_MAX_REPLAY_ATTEMPTS", "queue.max_replay_attempts"},
		{"PREFETCH_MAX_CONCURRENCY", "prefetch.max_concurrency"},
		{"NETWORK_PROBE_URL", "network.probe_url"},
		{"HTTP_PORT", "api.port"},
		{"LOG_LEVEL", "logging.level"},
		{"log_format", "logging.format"},

		// Unknown (should return empty)
		{"RANDOM_VAR", ""},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	t.Run("no config file exists", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "")
		if got := findConfigFile(); got != "" {
			t.Errorf("findConfigFile() = %q, want empty string", got)
		}
	})

	t.Run("config.yaml exists", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "")
		configPath := filepath.Join(tmpDir, "config.yaml")
		if err := os.WriteFile(configPath, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
			t.Fatalf("Failed to create config file: %v", err)
		}
		defer os.Remove(configPath)

		if got := findConfigFile(); got != "config.yaml" {
			t.Errorf("findConfigFile() = %q, want config.yaml", got)
		}
	})

	t.Run("CONFIG_PATH takes precedence", func(t *testing.T) {
		customPath := filepath.Join(tmpDir, "custom.yaml")
		if err := os.WriteFile(customPath, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
			t.Fatalf("Failed to create config file: %v", err)
		}
		t.Setenv(ConfigPathEnvVar, customPath)

		if got := findConfigFile(); got != customPath {
			t.Errorf("findConfigFile() = %q, want %q", got, customPath)
		}
	})

	t.Run("CONFIG_PATH pointing nowhere falls back", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "/non/existent/config.yaml")
		if got := findConfigFile(); got != "" {
			t.Errorf("findConfigFile() = %q, want empty string", got)
		}
	})
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("REMOTE_BASE_URL", "https://catalog.example.com/api")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CACHE_PRODUCTS_TTL", "90s")
	t.Setenv("PREFETCH_MAX_CONCURRENCY", "2")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173, app://bazaar ,")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Remote.BaseURL != "https://catalog.example.com/api" {
		t.Errorf("Remote.BaseURL = %q", cfg.Remote.BaseURL)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Cache.ProductsTTL != 90*time.Second {
		t.Errorf("Cache.ProductsTTL = %v, want 90s", cfg.Cache.ProductsTTL)
	}
	if cfg.Prefetch.MaxConcurrency != 2 {
		t.Errorf("Prefetch.MaxConcurrency = %d, want 2", cfg.Prefetch.MaxConcurrency)
	}

	if !reflect.DeepEqual(cfg.API.CORSOrigins, []string{"http://localhost:5173", "app://bazaar"}) {
		t.Errorf("API.CORSOrigins = %q", cfg.API.CORSOrigins)
	}

	// Defaults survive for unset values
	if cfg.API.PrefetchRateLimit != 6 {
		t.Errorf("API.PrefetchRateLimit = %d, want 6 (default)", cfg.API.PrefetchRateLimit)
	}
	if cfg.Cache.BusinessesCapacity != 100 {
		t.Errorf("Cache.BusinessesCapacity = %d, want 100 (default)", cfg.Cache.BusinessesCapacity)
	}
	if cfg.Network.ProbeURL != "" {
		t.Errorf("Network.ProbeURL = %q, want empty (probe the remote service)", cfg.Network.ProbeURL)
	}
}

func TestLoadWithKoanfEnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	yaml := `
remote:
  base_url: http://10.0.2.2:8080
store:
  path: /tmp/from-file.db
logging:
  level: warn
  format: console
`
	path := filepath.Join(tmpDir, "bazaar.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Store.Path != "/tmp/from-file.db" {
		t.Errorf("Store.Path = %q, want value from file", cfg.Store.Path)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format = %q, want console from file", cfg.Logging.Format)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want env override error", cfg.Logging.Level)
	}
}

func TestLoadWithKoanfValidation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		errMsg  string
	}{
		{
			name:    "missing base URL",
			envVars: map[string]string{},
			errMsg:  "BaseURL is required",
		},
		{
			name:    "non-http base URL",
			envVars: map[string]string{"REMOTE_BASE_URL": "ftp://catalog.example.com"},
			errMsg:  "scheme must be http or https",
		},
		{
			name: "unknown store driver",
			envVars: map[string]string{
				"REMOTE_BASE_URL": "https://catalog.example.com",
				"STORE_DRIVER":    "postgres",
			},
			errMsg: "Driver must be one of",
		},
		{
			name: "replay attempts below one",
			envVars: map[string]string{
				"REMOTE_BASE_URL":           "https://catalog.example.com",
				"QUEUE_MAX_REPLAY_ATTEMPTS": "0",
			},
			errMsg: "MaxReplayAttempts must be at least 1",
		},
		{
			name: "prefetch concurrency above four",
			envVars: map[string]string{
				"REMOTE_BASE_URL":          "https://catalog.example.com",
				"PREFETCH_MAX_CONCURRENCY": "5",
			},
			errMsg: "MaxConcurrency must be at most 4",
		},
		{
			name: "probe timeout exceeds interval",
			envVars: map[string]string{
				"REMOTE_BASE_URL":       "https://catalog.example.com",
				"NETWORK_PROBE_URL":     "https://catalog.example.com/health",
				"NETWORK_INTERVAL":      "2s",
				"NETWORK_PROBE_TIMEOUT": "5s",
			},
			errMsg: "must not exceed NETWORK_INTERVAL",
		},
		{
			name:    "valid configuration",
			envVars: map[string]string{"REMOTE_BASE_URL": "https://catalog.example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(ConfigPathEnvVar, "")
			for _, key := range []string{"REMOTE_BASE_URL", "STORE_DRIVER", "QUEUE_MAX_REPLAY_ATTEMPTS",
				"PREFETCH_MAX_CONCURRENCY", "NETWORK_PROBE_URL", "NETWORK_INTERVAL", "NETWORK_PROBE_TIMEOUT"} {
				t.Setenv(key, "")
				os.Unsetenv(key)
			}
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, err := LoadWithKoanf()

			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("LoadWithKoanf() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("LoadWithKoanf() expected error containing %q, got nil", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("LoadWithKoanf() error = %v, want it to contain %q", err, tt.errMsg)
			}
		})
	}
}

func TestAPIListenAddr(t *testing.T) {
	api := APIConfig{Host: "127.0.0.1", Port: 8787}
	if got := api.ListenAddr(); got != "127.0.0.1:8787" {
		t.Errorf("ListenAddr() = %q", got)
	}
}
