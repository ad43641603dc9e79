// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/bazaar/internal/api"
	"github.com/tomtom215/bazaar/internal/catalog"
	"github.com/tomtom215/bazaar/internal/config"
	"github.com/tomtom215/bazaar/internal/logging"
	"github.com/tomtom215/bazaar/internal/network"
	"github.com/tomtom215/bazaar/internal/ranking"
	"github.com/tomtom215/bazaar/internal/remote"
	"github.com/tomtom215/bazaar/internal/store"
	"github.com/tomtom215/bazaar/internal/supervisor"
	"github.com/tomtom215/bazaar/internal/supervisor/services"
	"github.com/tomtom215/bazaar/internal/trigger"
	"github.com/tomtom215/bazaar/internal/wal"
)

// app holds every long-lived component of the process.
type app struct {
	store    *store.Store
	queue    *wal.Queue
	repo     *catalog.Repository
	monitor  *network.Monitor
	prefetch *trigger.Trigger
	replay   *services.ReplayService
	handler  http.Handler
	server   *http.Server
	tree     *supervisor.SupervisorTree
}

// newApp opens the local stores and wires the catalog, the background
// services and the local API into a supervisor tree. Nothing runs until the
// tree is served.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open materialized store: %w", err)
	}

	q, err := wal.Open(queueConfig(&cfg.Queue))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open offline queue: %w", err), st.Close())
	}

	a := &app{store: st, queue: q}

	httpClient, err := remote.NewHTTPClient(&cfg.Remote, nil)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create remote client: %w", err), a.Close())
	}
	client := remote.NewCircuitBreakerClient(httpClient, &cfg.Remote.Breaker)

	a.repo = catalog.NewRepository(client, st, q, catalog.NewCaches(&cfg.Cache), catalog.OptionsFromConfig(cfg))

	var probe network.Probe = httpClient
	if cfg.Network.ProbeURL != "" {
		probe = network.NewHTTPProbe(cfg.Network.ProbeURL, cfg.Network.ProbeTimeout)
	}
	a.monitor = network.NewMonitor(probe, &cfg.Network)

	job := ranking.NewJob(client, st, ranking.Config{
		BusinessesPerCategory:  cfg.Prefetch.BusinessesPerCategory,
		ProductsPerSubcategory: cfg.Prefetch.ProductsPerSubcategory,
		MaxConcurrency:         cfg.Prefetch.MaxConcurrency,
	})
	a.prefetch = trigger.New(job, a.monitor, cfg.Prefetch.RunTimeout)
	if cfg.Prefetch.RunOnStartup {
		a.prefetch.Enqueue(false)
	}

	a.replay = services.NewReplayService(a.repo, 0)
	// The monitor starts offline, so the first successful probe also
	// replays clicks left over from the previous run.
	a.monitor.OnReconnect(func(context.Context) {
		a.replay.Notify()
	})
	// A remote outage the probe cannot see (5xx behind a custom probe URL,
	// an open breaker) ends with a successful call, not a reconnect.
	a.repo.OnRemoteSuccess(func() {
		if q.HasPending() {
			a.replay.Notify()
		}
	})

	a.handler = api.NewRouter(
		api.NewHandler(api.Deps{
			Catalog:  a.repo,
			Prefetch: a.prefetch,
			Network:  a.monitor,
			Store:    st,
			Queue:    q,
		}),
		api.NewChiMiddleware(api.ChiMiddlewareConfigFromAPI(&cfg.API)),
	).SetupChi()

	a.server = &http.Server{
		Addr:              cfg.API.ListenAddr(),
		Handler:           a.handler,
		ReadTimeout:       cfg.API.ReadTimeout,
		ReadHeaderTimeout: cfg.API.ReadTimeout,
		WriteTimeout:      cfg.API.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfigFromConfig(&cfg.Supervisor))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create supervisor tree: %w", err), a.Close())
	}
	tree.AddDataService(a.monitor)
	tree.AddDataService(wal.NewGCService(q, cfg.Queue.GCInterval))
	tree.AddDataService(a.replay)
	tree.AddJobService(a.prefetch)
	tree.AddAPIService(services.NewHTTPServerService(a.server, cfg.Supervisor.ShutdownTimeout))
	a.tree = tree

	return a, nil
}

// queueConfig overlays the queue section onto the WAL defaults.
func queueConfig(cfg *config.QueueConfig) wal.Config {
	walCfg := wal.DefaultConfig()
	walCfg.Path = cfg.Path
	walCfg.SyncWrites = cfg.SyncWrites
	if cfg.GCInterval > 0 {
		walCfg.GCInterval = cfg.GCInterval
	}
	return walCfg
}

// Close waits for background store refreshes, then closes the queue and
// the store.
func (a *app) Close() error {
	if a.repo != nil {
		a.repo.Wait()
	}
	var errs []error
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close offline queue: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close materialized store: %w", err))
		}
	}
	return errors.Join(errs...)
}
