// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package models

import "strings"

// Category is a catalog category as returned by the remote service.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Business is a seller listed in the catalog.
//
// CategoryID and CategoryName are both carried because upstream data links
// businesses to categories inconsistently (sometimes by id, sometimes by
// display name).
type Business struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	CategoryID   string   `json:"category_id"`
	CategoryName string   `json:"category_name"`
	LogoURL      string   `json:"logo_url"`
	Rating       float64  `json:"rating"`
	RatingCount  int64    `json:"rating_count"`
	ProductIDs   []string `json:"product_ids"`
}

// Product is a single item sold by a business.
type Product struct {
	ID          string  `json:"id"`
	BusinessID  string  `json:"business_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Rating      float64 `json:"rating"`
	ImageURL    string  `json:"image_url"`
}

// Subcategory returns the normalized grouping key used for product ranking.
func (p Product) Subcategory() string {
	return NormalizeKey(p.Category)
}

// NormalizeKey trims and lowercases a category id, name or subcategory so
// that loosely linked records compare equal.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// BelongsTo reports whether the business is a member of the category.
func (b Business) BelongsTo(c Category) bool {
	return MatchesCategory(b, c.ID, c.Name)
}

// MatchesCategory reports whether a business is linked to the category
// identified by categoryID or categoryName. Either key may match either of
// the business's category fields; all comparisons are trimmed and
// case-insensitive. Empty keys never match.
func MatchesCategory(b Business, categoryID, categoryName string) bool {
	bizID := NormalizeKey(b.CategoryID)
	bizName := NormalizeKey(b.CategoryName)

	for _, key := range [...]string{NormalizeKey(categoryID), NormalizeKey(categoryName)} {
		if key == "" {
			continue
		}
		if key == bizID || key == bizName {
			return true
		}
	}
	return false
}
