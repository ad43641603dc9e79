// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package ranking

import (
	"cmp"
	"slices"
	"strings"

	"github.com/tomtom215/bazaar/internal/models"
)

// compareBusinesses orders by rating desc, rating count desc, name asc,
// then id asc so the order is total.
func compareBusinesses(a, b models.Business) int {
	if c := cmp.Compare(b.Rating, a.Rating); c != 0 {
		return c
	}
	if c := cmp.Compare(b.RatingCount, a.RatingCount); c != 0 {
		return c
	}
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// compareProducts orders by rating desc, name asc, then id asc.
func compareProducts(a, b models.Product) int {
	if c := cmp.Compare(b.Rating, a.Rating); c != 0 {
		return c
	}
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// TopBusinesses returns the k best businesses belonging to category c.
// Membership matches the trimmed, case-insensitive category id or name.
func TopBusinesses(c models.Category, businesses []models.Business, k int) []models.Business {
	var matched []models.Business
	seen := make(map[string]struct{})
	for _, b := range businesses {
		if strings.TrimSpace(b.ID) == "" || !b.BelongsTo(c) {
			continue
		}
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		matched = append(matched, b)
	}
	slices.SortStableFunc(matched, compareBusinesses)
	if len(matched) > k {
		matched = matched[:k]
	}
	return matched
}

// TopProductsBySubcategory groups products by normalized subcategory and
// keeps the k best of each group.
func TopProductsBySubcategory(products []models.Product, k int) map[string][]models.Product {
	groups := make(map[string][]models.Product)
	seen := make(map[string]struct{}, len(products))
	for _, p := range products {
		if strings.TrimSpace(p.ID) == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		sub := p.Subcategory()
		groups[sub] = append(groups[sub], p)
	}
	for sub, group := range groups {
		slices.SortStableFunc(group, compareProducts)
		if len(group) > k {
			group = group[:k]
		}
		groups[sub] = group
	}
	return groups
}

// TopProducts returns the k best products overall.
func TopProducts(products []models.Product, k int) []models.Product {
	out := make([]models.Product, 0, len(products))
	seen := make(map[string]struct{}, len(products))
	for _, p := range products {
		if strings.TrimSpace(p.ID) == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	slices.SortStableFunc(out, compareProducts)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func rankBusinesses(c models.Category, top []models.Business, computedAt int64) []models.RankedBusiness {
	rows := make([]models.RankedBusiness, len(top))
	for i, b := range top {
		rows[i] = models.RankedBusiness{
			CategoryID:       c.ID,
			BusinessID:       b.ID,
			CategoryName:     c.Name,
			BusinessName:     b.Name,
			LogoURL:          b.LogoURL,
			Rating:           b.Rating,
			RatingCount:      b.RatingCount,
			Rank:             i + 1,
			ComputedAtMillis: computedAt,
			ProductIDsCSV:    models.JoinCSV(b.ProductIDs),
		}
	}
	return rows
}

func rankProducts(b models.Business, sub string, top []models.Product) []models.RankedProduct {
	rows := make([]models.RankedProduct, len(top))
	for i, p := range top {
		rows[i] = models.RankedProduct{
			BusinessID:   b.ID,
			Subcategory:  sub,
			ProductID:    p.ID,
			BusinessName: b.Name,
			ProductName:  p.Name,
			Price:        p.Price,
			Rating:       p.Rating,
			ImageURL:     p.ImageURL,
			Rank:         i + 1,
		}
	}
	return rows
}
