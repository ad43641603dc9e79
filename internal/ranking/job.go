// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

// Package ranking computes the materialized view of the catalog.
//
// A run fetches every category and business once, writes the top
// businesses of each category, then fetches products only for the
// businesses that made at least one category's top list and writes the
// top products of each business×subcategory. Product fan-out is bounded
// by Config.MaxConcurrency.
//
// A run is best-effort. A failed partition keeps its previous rows and is
// reported in the Outcome; nothing is returned as an error and panics are
// recovered.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/bazaar/internal/logging"
	"github.com/tomtom215/bazaar/internal/models"
)

// Catalog is the part of the remote service the job reads.
type Catalog interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListBusinesses(ctx context.Context) ([]models.Business, error)
	ListProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
}

// Store is the part of the materialized store the job writes.
type Store interface {
	ReplaceCategories(ctx context.Context, rows []models.CategoryRow) error
	ReplaceBusinessPartition(ctx context.Context, categoryID string, rows []models.RankedBusiness) error
	ClearBusinessPartition(ctx context.Context, categoryID string) error
	PruneBusinessPartitions(ctx context.Context, keepCategoryIDs []string) (int64, error)
	ReplaceProductPartition(ctx context.Context, key models.ProductPartition, rows []models.RankedProduct) error
	ClearProductPartition(ctx context.Context, key models.ProductPartition) error
	PruneProductPartitions(ctx context.Context, keepBusinessIDs []string) (int64, error)
	ProductSubcategories(ctx context.Context, businessID string) ([]string, error)
}

// Config sizes a run.
type Config struct {
	BusinessesPerCategory  int
	ProductsPerSubcategory int
	MaxConcurrency         int
}

// MaxConcurrency is the most businesses a run fetches products for at once.
const MaxConcurrency = 4

// DefaultConfig returns top-2 lists with at most 4 businesses in flight.
func DefaultConfig() Config {
	return Config{
		BusinessesPerCategory:  2,
		ProductsPerSubcategory: 2,
		MaxConcurrency:         4,
	}
}

// Job is the ranking/prefetch job.
type Job struct {
	catalog Catalog
	store   Store
	cfg     Config
	now     func() time.Time
}

// NewJob creates a job. Non-positive config values fall back to
// DefaultConfig.
func NewJob(catalog Catalog, store Store, cfg Config) *Job {
	def := DefaultConfig()
	if cfg.BusinessesPerCategory <= 0 {
		cfg.BusinessesPerCategory = def.BusinessesPerCategory
	}
	if cfg.ProductsPerSubcategory <= 0 {
		cfg.ProductsPerSubcategory = def.ProductsPerSubcategory
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	cfg.MaxConcurrency = min(cfg.MaxConcurrency, MaxConcurrency)
	return &Job{catalog: catalog, store: store, cfg: cfg, now: time.Now}
}

// run collects partition errors from concurrent workers.
type run struct {
	mu  sync.Mutex
	out Outcome
}

func (r *run) fail(kind, key string, err error) {
	r.mu.Lock()
	r.out.PartitionErrors = append(r.out.PartitionErrors, PartitionError{Kind: kind, Key: key, Err: err})
	r.mu.Unlock()
}

func (r *run) add(field *int, n int) {
	r.mu.Lock()
	*field += n
	r.mu.Unlock()
}

// Run executes one ranking pass. It never panics and never returns an
// error; see Outcome.
func (j *Job) Run(ctx context.Context) (out Outcome) {
	start := j.now()
	r := &run{}

	defer func() {
		if p := recover(); p != nil {
			logging.Error().Interface("panic", p).Msg("Ranking job panicked")
			r.mu.Lock()
			r.out.Status = StatusAborted
			r.out.Reason = fmt.Sprintf("panic: %v", p)
			r.mu.Unlock()
		}
		r.mu.Lock()
		out = r.out
		r.mu.Unlock()
		out.Duration = j.now().Sub(start)
	}()

	j.run(ctx, r)
	return r.out
}

func (j *Job) run(ctx context.Context, r *run) {
	categories, businesses, reason := j.fetchInputs(ctx)
	if reason != "" {
		r.out.Status = StatusAborted
		r.out.Reason = reason
		return
	}

	categories = usableCategories(categories)
	r.out.Categories = len(categories)

	mirror := make([]models.CategoryRow, len(categories))
	for i, c := range categories {
		mirror[i] = models.CategoryRow{ID: c.ID, Name: c.Name, Count: c.Count}
	}
	if err := j.store.ReplaceCategories(ctx, mirror); err != nil {
		r.fail(KindCategories, "", err)
	}

	eligible := j.rankCategories(ctx, r, categories, businesses)
	r.out.EligibleBusinesses = len(eligible)

	if err := ctx.Err(); err != nil {
		r.out.Status = StatusAborted
		r.out.Reason = "canceled"
		return
	}

	if err := j.rankProducts(ctx, r, eligible); err != nil {
		r.out.Status = StatusAborted
		r.out.Reason = "canceled"
		return
	}

	keep := make([]string, len(eligible))
	for i, b := range eligible {
		keep[i] = b.ID
	}
	if removed, err := j.store.PruneProductPartitions(ctx, keep); err != nil {
		r.fail(KindPrune, "products", err)
	} else if removed > 0 {
		logging.Debug().Int64("rows", removed).Msg("Pruned products of businesses no longer ranked")
	}

	if len(r.out.PartitionErrors) > 0 {
		r.out.Status = StatusPartialFailure
		r.out.Reason = fmt.Sprintf("%d partition(s) kept previous rows", len(r.out.PartitionErrors))
		return
	}
	r.out.Status = StatusSuccess
}

// fetchInputs returns a non-empty reason when the run must abort.
func (j *Job) fetchInputs(ctx context.Context) ([]models.Category, []models.Business, string) {
	categories, err := j.catalog.ListCategories(ctx)
	if err != nil {
		return nil, nil, abortReason("fetch categories", err)
	}
	if len(categories) == 0 {
		return nil, nil, "no categories"
	}

	businesses, err := j.catalog.ListBusinesses(ctx)
	if err != nil {
		return nil, nil, abortReason("fetch businesses", err)
	}
	if len(businesses) == 0 {
		return nil, nil, "no businesses"
	}
	return categories, businesses, ""
}

func abortReason(step string, err error) string {
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return step + ": " + err.Error()
}

// usableCategories drops categories without an id and repeated ids.
func usableCategories(in []models.Category) []models.Category {
	out := make([]models.Category, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		if strings.TrimSpace(c.ID) == "" {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// rankCategories writes every category partition and returns the distinct
// businesses appearing in at least one top list, in first-seen order.
func (j *Job) rankCategories(ctx context.Context, r *run, categories []models.Category, businesses []models.Business) []models.Business {
	computedAt := models.ToMillis(j.now())
	keep := make([]string, 0, len(categories))

	var eligible []models.Business
	seen := make(map[string]struct{})

	for _, c := range categories {
		if ctx.Err() != nil {
			return eligible
		}
		keep = append(keep, c.ID)

		top := TopBusinesses(c, businesses, j.cfg.BusinessesPerCategory)
		if len(top) == 0 {
			if err := j.store.ClearBusinessPartition(ctx, c.ID); err != nil {
				r.fail(KindBusiness, c.ID, err)
				continue
			}
			r.out.ClearedBusinessPartitions++
			continue
		}

		for _, b := range top {
			if _, dup := seen[b.ID]; !dup {
				seen[b.ID] = struct{}{}
				eligible = append(eligible, b)
			}
		}

		if err := j.store.ReplaceBusinessPartition(ctx, c.ID, rankBusinesses(c, top, computedAt)); err != nil {
			r.fail(KindBusiness, c.ID, err)
			continue
		}
		r.out.BusinessPartitions++
	}

	if removed, err := j.store.PruneBusinessPartitions(ctx, keep); err != nil {
		r.fail(KindPrune, "businesses", err)
	} else if removed > 0 {
		logging.Debug().Int64("rows", removed).Msg("Pruned partitions of vanished categories")
	}
	return eligible
}

// rankProducts fans out over eligible businesses. Only cancellation is
// returned; per-business failures are recorded on r.
func (j *Job) rankProducts(ctx context.Context, r *run, eligible []models.Business) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.cfg.MaxConcurrency)

	for _, b := range eligible {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					r.fail(KindProduct, b.ID, fmt.Errorf("panic: %v", p))
					err = nil
				}
			}()
			if err := j.rankBusinessProducts(gctx, r, b); errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (j *Job) rankBusinessProducts(ctx context.Context, r *run, b models.Business) error {
	var products []models.Product
	if ids := b.ProductIDs; len(ids) > 0 {
		fetched, err := j.catalog.ListProductsByIDs(ctx, ids)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			r.fail(KindProduct, b.ID, err)
			return nil
		}
		products = filterOwned(fetched, ids)
	}

	groups := TopProductsBySubcategory(products, j.cfg.ProductsPerSubcategory)

	written := 0
	for sub, top := range groups {
		key := models.ProductPartition{BusinessID: b.ID, Subcategory: sub}
		if err := j.store.ReplaceProductPartition(ctx, key, rankProducts(b, sub, top)); err != nil {
			r.fail(KindProduct, b.ID+"/"+sub, err)
			continue
		}
		written++
	}
	r.add(&r.out.ProductPartitions, written)

	existing, err := j.store.ProductSubcategories(ctx, b.ID)
	if err != nil {
		r.fail(KindProduct, b.ID, err)
		return nil
	}
	cleared := 0
	for _, sub := range existing {
		if _, still := groups[sub]; still {
			continue
		}
		if err := j.store.ClearProductPartition(ctx, models.ProductPartition{BusinessID: b.ID, Subcategory: sub}); err != nil {
			r.fail(KindProduct, b.ID+"/"+sub, err)
			continue
		}
		cleared++
	}
	r.add(&r.out.ClearedProductPartitions, cleared)
	return nil
}

// filterOwned keeps products whose id was requested.
func filterOwned(products []models.Product, ids []string) []models.Product {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[strings.TrimSpace(id)] = struct{}{}
	}
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if _, ok := want[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}
