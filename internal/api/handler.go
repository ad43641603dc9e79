// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package api

import (
	"context"
	"time"

	"github.com/tomtom215/bazaar/internal/cache"
	"github.com/tomtom215/bazaar/internal/catalog"
	"github.com/tomtom215/bazaar/internal/models"
	"github.com/tomtom215/bazaar/internal/trigger"
	"github.com/tomtom215/bazaar/internal/wal"
)

// Catalog is the read and write surface of the catalog repository.
type Catalog interface {
	Products(ctx context.Context, opts catalog.ReadOptions) (catalog.Result[models.Product], error)
	Businesses(ctx context.Context, categoryID string, opts catalog.ReadOptions) (catalog.Result[models.Business], error)
	BusinessDetail(ctx context.Context, businessID string, opts catalog.ReadOptions) (catalog.Result[models.Product], error)
	Categories(ctx context.Context) (catalog.Result[models.Category], error)
	ClickCategory(ctx context.Context, categoryID string) (catalog.ClickResult, error)
	ReplayPending(ctx context.Context) (catalog.ReplayReport, error)
	CacheStats() []cache.Stats
}

// Prefetcher starts ranking job runs.
type Prefetcher interface {
	Enqueue(replace bool) bool
	Status() trigger.Status
}

// Connectivity reports whether the remote service is reachable.
type Connectivity interface {
	Online() bool
}

// Pinger checks the materialized store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueStater reports offline queue statistics.
type QueueStater interface {
	Stats() wal.Stats
}

// Deps are the collaborators of the HTTP handlers. Only Catalog is
// required; missing components are reported as absent by /healthz.
type Deps struct {
	Catalog  Catalog
	Prefetch Prefetcher
	Network  Connectivity
	Store    Pinger
	Queue    QueueStater
}

// Handler serves the HTTP endpoints.
type Handler struct {
	catalog   Catalog
	prefetch  Prefetcher
	network   Connectivity
	store     Pinger
	queue     QueueStater
	startTime time.Time
}

// NewHandler creates a handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		catalog:   deps.Catalog,
		prefetch:  deps.Prefetch,
		network:   deps.Network,
		store:     deps.Store,
		queue:     deps.Queue,
		startTime: time.Now(),
	}
}
