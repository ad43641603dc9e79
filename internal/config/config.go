// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

// Package config loads and validates Bazaar configuration.
//
// Configuration is layered with Koanf v2:
//  1. Defaults from defaultConfig()
//  2. An optional YAML file (CONFIG_PATH, then DefaultConfigPaths)
//  3. Environment variables, mapped through an explicit table
//
// Unknown environment variables are ignored.
package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Remote     RemoteConfig     `koanf:"remote"`
	Cache      CacheConfig      `koanf:"cache"`
	Store      StoreConfig      `koanf:"store"`
	Queue      QueueConfig      `koanf:"queue"`
	Prefetch   PrefetchConfig   `koanf:"prefetch"`
	Network    NetworkConfig    `koanf:"network"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	API        APIConfig        `koanf:"api"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// RemoteConfig holds connection settings for the remote catalog service.
//
// Environment Variables:
//   - REMOTE_BASE_URL: Base URL of the catalog service (required)
//   - REMOTE_TOKEN: Static bearer token (optional, normally supplied by the auth layer)
//   - REMOTE_TIMEOUT: Per-request timeout (default: 10s)
//   - REMOTE_RATE_LIMIT: Requests per second (default: 10)
//   - REMOTE_RATE_BURST: Burst size (default: 20)
type RemoteConfig struct {
	BaseURL   string        `koanf:"base_url" validate:"required"`
	Token     string        `koanf:"token"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimit float64       `koanf:"rate_limit" validate:"gt=0"`
	RateBurst int           `koanf:"rate_burst" validate:"min=1"`
	Breaker   BreakerConfig `koanf:"breaker"`
}

// BreakerConfig configures the circuit breaker in front of the remote service.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32 `koanf:"max_requests" validate:"min=1"`

	// Interval is the cyclic period of the closed state for clearing counts.
	Interval time.Duration `koanf:"interval" validate:"gte=0"`

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32 `koanf:"consecutive_failures" validate:"min=1"`
}

// CacheConfig holds memory cache capacities and freshness windows.
type CacheConfig struct {
	ProductsCapacity           int           `koanf:"products_capacity" validate:"min=1"`
	BusinessesCapacity         int           `koanf:"businesses_capacity" validate:"min=1"`
	ProductsByBusinessCapacity int           `koanf:"products_by_business_capacity" validate:"min=1"`
	ProductsTTL                time.Duration `koanf:"products_ttl" validate:"gt=0"`
	BusinessesTTL              time.Duration `koanf:"businesses_ttl" validate:"gt=0"`
	ProductsByBusinessTTL      time.Duration `koanf:"products_by_business_ttl" validate:"gt=0"`
}

// StoreConfig holds the durable materialized store settings.
//
// Environment Variables:
//   - STORE_DRIVER: sqlite or duckdb (default: sqlite; duckdb needs the duckdb build tag)
//   - STORE_PATH: Database file path (default: /data/bazaar.db)
type StoreConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite duckdb"`
	Path   string `koanf:"path" validate:"required"`
}

// QueueConfig holds the offline write queue settings.
type QueueConfig struct {
	Path              string        `koanf:"path" validate:"required"`
	SyncWrites        bool          `koanf:"sync_writes"`
	MaxReplayAttempts int           `koanf:"max_replay_attempts" validate:"min=1"`
	GCInterval        time.Duration `koanf:"gc_interval" validate:"gt=0"`
}

// PrefetchConfig holds ranking job settings.
type PrefetchConfig struct {
	BusinessesPerCategory  int           `koanf:"businesses_per_category" validate:"min=1"`
	ProductsPerSubcategory int           `koanf:"products_per_subcategory" validate:"min=1"`
	MaxConcurrency         int           `koanf:"max_concurrency" validate:"min=1,max=4"`
	GlobalTopSize          int           `koanf:"global_top_size" validate:"min=1"`
	RunTimeout             time.Duration `koanf:"run_timeout" validate:"gt=0"`
	RunOnStartup           bool          `koanf:"run_on_startup"`
}

// NetworkConfig holds connectivity monitor settings.
// With ProbeURL empty the remote service itself is pinged.
type NetworkConfig struct {
	ProbeURL     string        `koanf:"probe_url"`
	Interval     time.Duration `koanf:"interval" validate:"gt=0"`
	ProbeTimeout time.Duration `koanf:"probe_timeout" validate:"gt=0"`
}

// SupervisorConfig mirrors suture's failure parameters.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// APIConfig holds the loopback HTTP surface settings.
//
// Environment Variables:
//   - HTTP_HOST: Listen host (default: 127.0.0.1)
//   - HTTP_PORT: Listen port (default: 8787)
//   - CORS_ORIGINS: Comma-separated origins allowed to call the API (default: none)
//   - PREFETCH_RATE_LIMIT: Manual prefetch requests allowed per minute (default: 6, 0 disables)
type APIConfig struct {
	Host         string        `koanf:"host" validate:"required"`
	Port         int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`

	CORSOrigins       []string `koanf:"cors_origins"`
	PrefetchRateLimit int      `koanf:"prefetch_rate_limit" validate:"min=0"`
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, config file and environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
