// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package wal

import (
	"time"
)

// Config holds offline queue configuration.
//
// Values are populated by internal/config from the QUEUE_* environment
// variables or the queue section of the YAML file.
type Config struct {
	// Path is the directory where BadgerDB stores its files.
	// Should be on a durable filesystem (not tmpfs).
	Path string

	// SyncWrites forces fsync after every write. Disabling it trades
	// durability of the last few intents for throughput.
	SyncWrites bool

	// Compression enables Snappy compression for stored intents.
	Compression bool

	// GCInterval is the time between value log garbage collection runs.
	GCInterval time.Duration

	// GCRatio is the ratio for value log garbage collection.
	// Lower values reclaim more space but use more CPU.
	GCRatio float64

	// CloseTimeout is the maximum time to wait for BadgerDB to close.
	CloseTimeout time.Duration

	// BadgerDB tuning options
	MemTableSize     int64
	ValueLogFileSize int64
	NumCompactors    int

	// SequenceBandwidth is how many sequence numbers are leased from
	// BadgerDB at a time.
	SequenceBandwidth uint64
}

// DefaultConfig returns a Config tuned for a single device: small
// tables, durable writes.
func DefaultConfig() Config {
	return Config{
		Path:              "/data/queue",
		SyncWrites:        true,
		Compression:       true,
		GCInterval:        30 * time.Minute,
		GCRatio:           0.5,
		CloseTimeout:      30 * time.Second,
		MemTableSize:      16 * 1024 * 1024,
		ValueLogFileSize:  16 * 1024 * 1024,
		NumCompactors:     2,
		SequenceBandwidth: 100,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Path == "" {
		return &ConfigError{Field: "Path", Message: "queue path is required"}
	}

	if c.GCInterval < time.Minute {
		return &ConfigError{Field: "GCInterval", Message: "must be at least 1 minute"}
	}

	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return &ConfigError{Field: "GCRatio", Message: "must be between 0 and 1 exclusive"}
	}

	if c.MemTableSize < 1024*1024 { // 1MB minimum
		return &ConfigError{Field: "MemTableSize", Message: "must be at least 1MB"}
	}

	if c.ValueLogFileSize < 1024*1024 { // 1MB minimum
		return &ConfigError{Field: "ValueLogFileSize", Message: "must be at least 1MB"}
	}

	if c.NumCompactors < 2 {
		return &ConfigError{Field: "NumCompactors", Message: "must be at least 2 (BadgerDB requirement)"}
	}

	if c.SequenceBandwidth == 0 {
		return &ConfigError{Field: "SequenceBandwidth", Message: "must be at least 1"}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "queue config error: " + e.Field + ": " + e.Message
}
