// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

/*
Package catalog is the read path used by the UI.

Every read walks the same chain and stops at the first tier that answers:

 1. memory cache within TTL (skipped with ReadOptions.ForceRefresh)
 2. remote service; on success the memory cache is overwritten
 3. materialized store (ranked rows written by the ranking job)
 4. memory cache ignoring TTL
 5. ErrUnavailable

An empty remote answer is authoritative and ends the chain at step 2.
Caller cancellation ends the read with ctx.Err() and TierCanceled; it never
falls through to the stale tiers. A caller deadline is treated like any
other remote failure.

Writes (category clicks) go to the remote service and fall back to the
offline queue, which ReplayPending drains once connectivity returns.
*/
package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/bazaar/internal/cache"
	"github.com/tomtom215/bazaar/internal/config"
	"github.com/tomtom215/bazaar/internal/logging"
	"github.com/tomtom215/bazaar/internal/metrics"
	"github.com/tomtom215/bazaar/internal/models"
	"github.com/tomtom215/bazaar/internal/wal"
)

// Remote is the remote catalog service.
type Remote interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListBusinesses(ctx context.Context) ([]models.Business, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	ListProductsByBusiness(ctx context.Context, businessID string) ([]models.Product, error)
	IncrementCategoryCount(ctx context.Context, categoryID string) error
}

// Store is the read side of the materialized store plus the two side
// lists the read path owns.
type Store interface {
	Categories(ctx context.Context) ([]models.CategoryRow, error)
	BusinessPartition(ctx context.Context, categoryID string) ([]models.RankedBusiness, error)
	AllRankedBusinesses(ctx context.Context) ([]models.RankedBusiness, error)
	RankedProductsForBusiness(ctx context.Context, businessID string) ([]models.RankedProduct, error)
	GlobalTop(ctx context.Context) ([]models.GlobalTopProduct, error)
	ReplaceGlobalTop(ctx context.Context, rows []models.GlobalTopProduct) error
	RecentProductIDs(ctx context.Context, businessID string) ([]string, error)
	SaveRecentProductIDs(ctx context.Context, businessID string, ids []string) error
}

// Queue is the offline write queue.
type Queue interface {
	Enqueue(ctx context.Context, targetID string) error
	Drain(ctx context.Context) ([]wal.Intent, error)
	Requeue(ctx context.Context, in wal.Intent) error
	Restore(ctx context.Context, in wal.Intent) error
}

// Caches are the three memory caches.
type Caches struct {
	Products           *cache.Store[string, models.Product]
	Businesses         *cache.Store[string, models.Business]
	ProductsByBusiness *cache.Store[string, models.Product]
}

func productKey(p models.Product) string   { return p.ID }
func businessKey(b models.Business) string { return b.ID }

// NewCaches builds the memory caches sized by cfg.
func NewCaches(cfg *config.CacheConfig, opts ...cache.Option) Caches {
	return Caches{
		Products:           cache.New(cache.AllProducts, cfg.ProductsCapacity, productKey, opts...),
		Businesses:         cache.New(cache.Businesses, cfg.BusinessesCapacity, businessKey, opts...),
		ProductsByBusiness: cache.New(cache.ProductsByBusiness, cfg.ProductsByBusinessCapacity, productKey, opts...),
	}
}

// Options tune the repository.
type Options struct {
	ProductsTTL           time.Duration
	BusinessesTTL         time.Duration
	ProductsByBusinessTTL time.Duration

	// GlobalTopSize is how many products the global-top snapshot keeps.
	GlobalTopSize int

	// MaxReplayAttempts bounds how often a queued click is tried. With 1 a
	// failed replay is dropped.
	MaxReplayAttempts int

	// RefreshTimeout bounds the background global-top refresh.
	RefreshTimeout time.Duration
}

// DefaultOptions returns five minute TTLs, a top-20 snapshot and
// single-attempt replay.
func DefaultOptions() Options {
	return Options{
		ProductsTTL:           5 * time.Minute,
		BusinessesTTL:         5 * time.Minute,
		ProductsByBusinessTTL: 5 * time.Minute,
		GlobalTopSize:         20,
		MaxReplayAttempts:     1,
		RefreshTimeout:        30 * time.Second,
	}
}

// OptionsFromConfig maps application config onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.ProductsTTL = cfg.Cache.ProductsTTL
	opts.BusinessesTTL = cfg.Cache.BusinessesTTL
	opts.ProductsByBusinessTTL = cfg.Cache.ProductsByBusinessTTL
	opts.GlobalTopSize = cfg.Prefetch.GlobalTopSize
	opts.MaxReplayAttempts = cfg.Queue.MaxReplayAttempts
	return opts
}

// Repository implements the read and write use cases.
type Repository struct {
	remote Remote
	store  Store
	queue  Queue
	caches Caches
	opts   Options
	logger zerolog.Logger

	refreshes sync.WaitGroup
	replayMu  sync.Mutex

	topMu  sync.Mutex
	topGen atomic.Uint64

	hookMu    sync.RWMutex
	onSuccess []func()
}

// NewRepository wires a repository. Zero option fields take defaults.
func NewRepository(remote Remote, store Store, queue Queue, caches Caches, opts Options) *Repository {
	def := DefaultOptions()
	if opts.ProductsTTL <= 0 {
		opts.ProductsTTL = def.ProductsTTL
	}
	if opts.BusinessesTTL <= 0 {
		opts.BusinessesTTL = def.BusinessesTTL
	}
	if opts.ProductsByBusinessTTL <= 0 {
		opts.ProductsByBusinessTTL = def.ProductsByBusinessTTL
	}
	if opts.GlobalTopSize <= 0 {
		opts.GlobalTopSize = def.GlobalTopSize
	}
	if opts.MaxReplayAttempts <= 0 {
		opts.MaxReplayAttempts = def.MaxReplayAttempts
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = def.RefreshTimeout
	}
	return &Repository{
		remote: remote,
		store:  store,
		queue:  queue,
		caches: caches,
		opts:   opts,
		logger: logging.WithComponent("catalog"),
	}
}

// OnRemoteSuccess registers fn to run after every successful remote read
// or click. It runs on the caller's goroutine and must not block.
func (r *Repository) OnRemoteSuccess(fn func()) {
	r.hookMu.Lock()
	r.onSuccess = append(r.onSuccess, fn)
	r.hookMu.Unlock()
}

func (r *Repository) remoteSucceeded() {
	r.hookMu.RLock()
	hooks := r.onSuccess
	r.hookMu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}

// Wait blocks until background store refreshes have finished.
func (r *Repository) Wait() {
	r.refreshes.Wait()
}

// CacheStats returns a snapshot of the memory caches.
func (r *Repository) CacheStats() []cache.Stats {
	return []cache.Stats{
		r.caches.Products.Stats(),
		r.caches.Businesses.Stats(),
		r.caches.ProductsByBusiness.Stats(),
	}
}

// chain describes one read use case. Nil steps are skipped.
type chain[T any] struct {
	useCase string

	// memory returns fresh cached items.
	memory func() ([]T, bool)

	// remote fetches authoritative items.
	remote func(ctx context.Context) ([]T, error)

	// onFresh stores an authoritative answer. It receives a context
	// detached from caller cancellation.
	onFresh func(ctx context.Context, items []T)

	// durable reads the materialized store.
	durable func(ctx context.Context) ([]T, error)

	// stale reads the memory cache ignoring TTL.
	stale func() []T
}

func read[T any](ctx context.Context, r *Repository, opts ReadOptions, c chain[T]) (Result[T], error) {
	start := time.Now()
	res, err := walk(ctx, r, opts, c)
	metrics.RecordReadTier(c.useCase, res.Tier.String(), time.Since(start))
	return res, err
}

func walk[T any](ctx context.Context, r *Repository, opts ReadOptions, c chain[T]) (Result[T], error) {
	logger := logging.Ctx(ctx).With().Str("component", "catalog").Str("use_case", c.useCase).Logger()

	if !opts.ForceRefresh && c.memory != nil {
		if items, ok := c.memory(); ok {
			return Result[T]{Items: items, Tier: TierFreshMemory}, nil
		}
	}

	items, remoteErr := c.remote(ctx)
	if remoteErr == nil {
		if items == nil {
			items = []T{}
		}
		if c.onFresh != nil {
			c.onFresh(context.WithoutCancel(ctx), items)
		}
		r.remoteSucceeded()
		return Result[T]{Items: items, Tier: TierFresh}, nil
	}
	if canceled(ctx, remoteErr) {
		logger.Debug().Msg("Read canceled by caller")
		return Result[T]{Tier: TierCanceled}, context.Canceled
	}

	logger.Debug().Err(remoteErr).Msg("Remote read failed, degrading")

	// Local tiers must answer even when the caller's deadline has passed.
	local := context.WithoutCancel(ctx)

	if c.durable != nil {
		rows, err := c.durable(local)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("Materialized store read failed")
		case len(rows) > 0:
			return Result[T]{Items: rows, Tier: TierStaleDurable}, nil
		}
	}

	if c.stale != nil {
		if rows := c.stale(); len(rows) > 0 {
			return Result[T]{Items: rows, Tier: TierStaleMemory}, nil
		}
	}

	logger.Warn().Err(remoteErr).Msg("No data tier available")
	return Result[T]{Items: []T{}, Tier: TierUnavailable}, errors.Join(ErrUnavailable, remoteErr)
}

// canceled reports caller cancellation. Deadlines are not cancellation.
func canceled(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled)
}
