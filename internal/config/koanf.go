// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/bazaar/config.yaml",
	"/etc/bazaar/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values.
// Defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			BaseURL:   "",
			Timeout:   10 * time.Second,
			RateLimit: 10,
			RateBurst: 20,
			Breaker: BreakerConfig{
				MaxRequests:         1,
				Interval:            time.Minute,
				Timeout:             30 * time.Second,
				ConsecutiveFailures: 5,
			},
		},
		Cache: CacheConfig{
			ProductsCapacity:           500,
			BusinessesCapacity:         100,
			ProductsByBusinessCapacity: 50,
			ProductsTTL:                5 * time.Minute,
			BusinessesTTL:              5 * time.Minute,
			ProductsByBusinessTTL:      5 * time.Minute,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "/data/bazaar.db",
		},
		Queue: QueueConfig{
			Path:              "/data/queue",
			SyncWrites:        true,
			MaxReplayAttempts: 1, // a failed replay is dropped
			GCInterval:        10 * time.Minute,
		},
		Prefetch: PrefetchConfig{
			BusinessesPerCategory:  2,
			ProductsPerSubcategory: 2,
			MaxConcurrency:         4,
			GlobalTopSize:          20,
			RunTimeout:             5 * time.Minute,
			RunOnStartup:           true,
		},
		Network: NetworkConfig{
			Interval:     15 * time.Second,
			ProbeTimeout: 5 * time.Second,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
		API: APIConfig{
			Host:         "127.0.0.1",
			Port:         8787,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,

			PrefetchRateLimit: 6,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration with layered sources:
//  1. Defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// REMOTE_BASE_URL -> remote.base_url
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "" if none.
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

// envMappings maps lowercased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Remote catalog service
	"remote_base_url":                     "remote.base_url",
	"remote_token":                        "remote.token",
	"remote_timeout":                      "remote.timeout",
	"remote_rate_limit":                   "remote.rate_limit",
	"remote_rate_burst":                   "remote.rate_burst",
	"remote_breaker_max_requests":         "remote.breaker.max_requests",
	"remote_breaker_interval":             "remote.breaker.interval",
	"remote_breaker_timeout":              "remote.breaker.timeout",
	"remote_breaker_consecutive_failures": "remote.breaker.consecutive_failures",

	// Memory caches
	"cache_products_capacity":             "cache.products_capacity",
	"cache_businesses_capacity":           "cache.businesses_capacity",
	"cache_products_by_business_capacity": "cache.products_by_business_capacity",
	"cache_products_ttl":                  "cache.products_ttl",
	"cache_businesses_ttl":                "cache.businesses_ttl",
	"cache_products_by_business_ttl":      "cache.products_by_business_ttl",

	// Durable store
	"store_driver": "store.driver",
	"store_path":   "store.path",

	// Offline queue
	"queue_path":                "queue.path",
	"queue_sync_writes":         "queue.sync_writes",
	"queue_max_replay_attempts": "queue.max_replay_attempts",
	"queue_gc_interval":         "queue.gc_interval",

	// Prefetch job
	"prefetch_businesses_per_category":  "prefetch.businesses_per_category",
	"prefetch_products_per_subcategory": "prefetch.products_per_subcategory",
	"prefetch_max_concurrency":          "prefetch.max_concurrency",
	"prefetch_global_top_size":          "prefetch.global_top_size",
	"prefetch_run_timeout":              "prefetch.run_timeout",
	"prefetch_run_on_startup":           "prefetch.run_on_startup",

	// Connectivity
	"network_probe_url":     "network.probe_url",
	"network_interval":      "network.interval",
	"network_probe_timeout": "network.probe_timeout",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",

	// Local API
	"http_host":           "api.host",
	"http_port":           "api.port",
	"http_read_timeout":   "api.read_timeout",
	"http_write_timeout":  "api.write_timeout",
	"cors_origins":        "api.cors_origins",
	"prefetch_rate_limit": "api.prefetch_rate_limit",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// sliceConfigPaths lists config paths given as comma-separated strings in
// the environment.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped so unrelated environment
// variables cannot pollute the config.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
