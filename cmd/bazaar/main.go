// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

// Package main is the entry point for the Bazaar catalog daemon.
//
// Bazaar sits between a marketplace UI and the remote catalog service. It
// answers catalog reads from memory, the remote service or a local
// materialized store, whichever is the freshest tier that can answer, and
// queues category clicks while the device is offline.
//
// # Application Architecture
//
// The daemon initializes components in the following order:
//
//  1. Configuration: defaults, config file and environment (Koanf v2)
//  2. Materialized store: ranked snapshots in SQLite (or DuckDB with -tags duckdb)
//  3. Offline queue: BadgerDB write-ahead log of category clicks
//  4. Remote client: HTTP client behind a circuit breaker
//  5. Catalog repository: the tiered read path and the click write path
//  6. Background services: connectivity monitor, queue replay, queue GC and
//     the prefetch trigger for the ranking job
//  7. Local API: chi router on HTTP_HOST:HTTP_PORT
//
// Background services and the API server run under a suture supervisor tree.
//
// # Configuration
//
// Configuration is loaded with layered sources (highest priority wins):
//   - Environment variables
//   - Config file (CONFIG_PATH or ./config.yaml)
//   - Built-in defaults
//
// REMOTE_BASE_URL is the only required setting.
//
// # Signal Handling
//
// The daemon shuts down gracefully on SIGINT and SIGTERM:
//   - Stops accepting new API connections
//   - Cancels a running prefetch job and queue replay
//   - Waits for background snapshot refreshes
//   - Closes the offline queue and the materialized store
//
// # Example Usage
//
//	export REMOTE_BASE_URL=https://catalog.example.com/api
//	export STORE_PATH=/var/lib/bazaar/catalog.db
//	export QUEUE_PATH=/var/lib/bazaar/queue
//	./bazaar
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/bazaar/internal/config"
	"github.com/tomtom215/bazaar/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("remote_url", cfg.Remote.BaseURL).
		Str("store_driver", cfg.Store.Driver).
		Str("listen_addr", cfg.API.ListenAddr()).
		Msg("Starting Bazaar")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing local stores")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := a.tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
		cancel()
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := a.tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Bazaar stopped")
}
