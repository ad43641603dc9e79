// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package catalog

import (
	"context"
	"strings"

	"github.com/tomtom215/bazaar/internal/models"
	"github.com/tomtom215/bazaar/internal/ranking"
	"github.com/tomtom215/bazaar/internal/store"
)

// Use case labels for metrics and logs.
const (
	useProducts       = "products"
	useBusinesses     = "businesses"
	useBusinessDetail = "business_detail"
	useCategories     = "categories"
)

// Products returns the whole product catalog. A fresh answer also
// refreshes the global-top snapshot in the background.
func (r *Repository) Products(ctx context.Context, opts ReadOptions) (Result[models.Product], error) {
	return read(ctx, r, opts, chain[models.Product]{
		useCase: useProducts,
		memory: func() ([]models.Product, bool) {
			return r.caches.Products.GetAllIfFresh(r.opts.ProductsTTL)
		},
		remote: r.remote.ListProducts,
		onFresh: func(_ context.Context, items []models.Product) {
			r.caches.Products.PutAll(items)
			r.refreshGlobalTop(items)
		},
		durable: func(ctx context.Context) ([]models.Product, error) {
			rows, err := r.store.GlobalTop(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]models.Product, len(rows))
			for i, row := range rows {
				out[i] = row.ToProduct()
			}
			return out, nil
		},
		stale: r.caches.Products.GetAllAllowStale,
	})
}

// refreshGlobalTop rewrites the global-top snapshot off the read path.
// Refreshes write one at a time and a refresh that has been overtaken by a
// newer one is skipped, so the snapshot always ends on the latest read.
func (r *Repository) refreshGlobalTop(products []models.Product) {
	top := ranking.TopProducts(products, r.opts.GlobalTopSize)
	rows := make([]models.GlobalTopProduct, len(top))
	for i, p := range top {
		rows[i] = models.GlobalTopFromProduct(p)
	}
	gen := r.topGen.Add(1)

	r.refreshes.Add(1)
	go func() {
		defer r.refreshes.Done()
		r.topMu.Lock()
		defer r.topMu.Unlock()
		if r.topGen.Load() != gen {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.opts.RefreshTimeout)
		defer cancel()
		if err := r.store.ReplaceGlobalTop(ctx, rows); err != nil {
			r.logger.Warn().Err(err).Msg("Global top refresh failed")
		}
	}()
}

// Businesses returns the businesses of a category, or all businesses when
// categoryID is empty. Membership matches the category id or its display
// name.
func (r *Repository) Businesses(ctx context.Context, categoryID string, opts ReadOptions) (Result[models.Business], error) {
	categoryID = strings.TrimSpace(categoryID)
	filter := func(ctx context.Context, items []models.Business) []models.Business {
		if categoryID == "" {
			return items
		}
		name := r.categoryName(ctx, categoryID)
		out := make([]models.Business, 0, len(items))
		for _, b := range items {
			if models.MatchesCategory(b, categoryID, name) {
				out = append(out, b)
			}
		}
		return out
	}

	var fetched []models.Business
	return read(ctx, r, opts, chain[models.Business]{
		useCase: useBusinesses,
		memory: func() ([]models.Business, bool) {
			items, ok := r.caches.Businesses.GetAllIfFresh(r.opts.BusinessesTTL)
			if !ok {
				return nil, false
			}
			return filter(context.WithoutCancel(ctx), items), true
		},
		remote: func(ctx context.Context) ([]models.Business, error) {
			items, err := r.remote.ListBusinesses(ctx)
			if err != nil {
				return nil, err
			}
			fetched = items
			return filter(ctx, items), nil
		},
		onFresh: func(context.Context, []models.Business) {
			r.caches.Businesses.PutAll(fetched)
		},
		durable: func(ctx context.Context) ([]models.Business, error) {
			var (
				rows []models.RankedBusiness
				err  error
			)
			if categoryID != "" {
				rows, err = r.store.BusinessPartition(ctx, categoryID)
			} else {
				rows, err = r.store.AllRankedBusinesses(ctx)
			}
			if err != nil {
				return nil, err
			}
			return rankedToBusinesses(rows), nil
		},
		stale: func() []models.Business {
			return filter(context.WithoutCancel(ctx), r.caches.Businesses.GetAllAllowStale())
		},
	})
}

// categoryName resolves a display name from the mirrored category list.
// Unknown ids resolve to "".
func (r *Repository) categoryName(ctx context.Context, categoryID string) string {
	rows, err := r.store.Categories(ctx)
	if err != nil {
		return ""
	}
	for _, c := range rows {
		if c.ID == categoryID {
			return c.Name
		}
	}
	return ""
}

// rankedToBusinesses converts rows, keeping the first row of a business
// that ranks in several categories.
func rankedToBusinesses(rows []models.RankedBusiness) []models.Business {
	out := make([]models.Business, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.BusinessID]; dup {
			continue
		}
		seen[row.BusinessID] = struct{}{}
		out = append(out, row.ToBusiness())
	}
	return out
}

// BusinessDetail returns the products of one business. A fresh answer
// also records the business's first product ids as its recent list.
func (r *Repository) BusinessDetail(ctx context.Context, businessID string, opts ReadOptions) (Result[models.Product], error) {
	businessID = strings.TrimSpace(businessID)
	owned := func(items []models.Product) []models.Product {
		out := make([]models.Product, 0, len(items))
		for _, p := range items {
			if p.BusinessID == businessID {
				out = append(out, p)
			}
		}
		return out
	}

	return read(ctx, r, opts, chain[models.Product]{
		useCase: useBusinessDetail,
		memory: func() ([]models.Product, bool) {
			items, ok := r.caches.ProductsByBusiness.GetAllIfFresh(r.opts.ProductsByBusinessTTL)
			if !ok {
				return nil, false
			}
			// The cache holds the last business viewed.
			mine := owned(items)
			if len(mine) != len(items) {
				return nil, false
			}
			return mine, true
		},
		remote: func(ctx context.Context) ([]models.Product, error) {
			items, err := r.remote.ListProductsByBusiness(ctx, businessID)
			if err != nil {
				return nil, err
			}
			for i := range items {
				if items[i].BusinessID == "" {
					items[i].BusinessID = businessID
				}
			}
			return items, nil
		},
		onFresh: func(ctx context.Context, items []models.Product) {
			r.caches.ProductsByBusiness.PutAll(items)
			ids := make([]string, 0, store.MaxRecentProducts)
			for _, p := range items {
				if len(ids) == store.MaxRecentProducts {
					break
				}
				ids = append(ids, p.ID)
			}
			if err := r.store.SaveRecentProductIDs(ctx, businessID, ids); err != nil {
				r.logger.Warn().Err(err).Str("business_id", businessID).Msg("Saving recent product ids failed")
			}
		},
		durable: func(ctx context.Context) ([]models.Product, error) {
			return r.durableDetail(ctx, businessID)
		},
		stale: func() []models.Product {
			return owned(r.caches.ProductsByBusiness.GetAllAllowStale())
		},
	})
}

// durableDetail merges ranked products with recent ids that resolve
// through the memory caches.
func (r *Repository) durableDetail(ctx context.Context, businessID string) ([]models.Product, error) {
	ranked, err := r.store.RankedProductsForBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Product, 0, len(ranked))
	seen := make(map[string]struct{}, len(ranked))
	for _, row := range ranked {
		if _, dup := seen[row.ProductID]; dup {
			continue
		}
		seen[row.ProductID] = struct{}{}
		out = append(out, row.ToProduct())
	}

	recent, err := r.store.RecentProductIDs(ctx, businessID)
	if err != nil {
		r.logger.Warn().Err(err).Str("business_id", businessID).Msg("Reading recent product ids failed")
		return out, nil
	}
	for _, id := range recent {
		if _, dup := seen[id]; dup {
			continue
		}
		p, ok := r.caches.Products.Get(id)
		if !ok {
			p, ok = r.caches.ProductsByBusiness.Get(id)
		}
		if !ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// Categories returns the category list. There is no memory tier; the
// mirror written by the ranking job is the only fallback.
func (r *Repository) Categories(ctx context.Context) (Result[models.Category], error) {
	return read(ctx, r, ReadOptions{ForceRefresh: true}, chain[models.Category]{
		useCase: useCategories,
		remote:  r.remote.ListCategories,
		durable: func(ctx context.Context) ([]models.Category, error) {
			rows, err := r.store.Categories(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]models.Category, len(rows))
			for i, row := range rows {
				out[i] = row.ToCategory()
			}
			return out, nil
		},
	})
}
