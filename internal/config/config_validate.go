// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package config

import (
	"fmt"

	"github.com/tomtom215/bazaar/internal/validation"
)

// Validate checks that required configuration is present and valid.
// Field-level rules live in the validate tags; cross-field rules are below.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := c.validateRemote(); err != nil {
		return err
	}

	if err := c.validateNetwork(); err != nil {
		return err
	}

	return c.validatePrefetch()
}

func (c *Config) validateRemote() error {
	if err := validateHTTPURL(c.Remote.BaseURL, "REMOTE_BASE_URL"); err != nil {
		return fmt.Errorf("REMOTE_BASE_URL is invalid: %w", err)
	}
	if c.Remote.RateBurst < int(c.Remote.RateLimit) {
		return fmt.Errorf("REMOTE_RATE_BURST (%d) must be at least REMOTE_RATE_LIMIT (%.0f)",
			c.Remote.RateBurst, c.Remote.RateLimit)
	}
	return nil
}

func (c *Config) validateNetwork() error {
	if c.Network.ProbeURL == "" {
		return nil
	}
	if err := validateHTTPURL(c.Network.ProbeURL, "NETWORK_PROBE_URL"); err != nil {
		return fmt.Errorf("NETWORK_PROBE_URL is invalid: %w", err)
	}
	if c.Network.ProbeTimeout > c.Network.Interval {
		return fmt.Errorf("NETWORK_PROBE_TIMEOUT (%s) must not exceed NETWORK_INTERVAL (%s)",
			c.Network.ProbeTimeout, c.Network.Interval)
	}
	return nil
}

func (c *Config) validatePrefetch() error {
	if c.Prefetch.GlobalTopSize > c.Cache.ProductsCapacity {
		return fmt.Errorf("PREFETCH_GLOBAL_TOP_SIZE (%d) must not exceed CACHE_PRODUCTS_CAPACITY (%d)",
			c.Prefetch.GlobalTopSize, c.Cache.ProductsCapacity)
	}
	return nil
}

// ListenAddr returns host:port for the local API.
func (c *APIConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
