// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package models

import (
	"strings"
	"time"
)

// RankedBusiness is one row of a category's top-K business partition.
// The partition key is CategoryID; Rank runs 1..N within it.
type RankedBusiness struct {
	CategoryID       string  `json:"category_id"`
	BusinessID       string  `json:"business_id"`
	CategoryName     string  `json:"category_name"`
	BusinessName     string  `json:"business_name"`
	LogoURL          string  `json:"logo_url"`
	Rating           float64 `json:"rating"`
	RatingCount      int64   `json:"rating_count"`
	Rank             int     `json:"rank"`
	ComputedAtMillis int64   `json:"computed_at"`
	ProductIDsCSV    string  `json:"product_ids_csv"`
}

// ProductIDs splits ProductIDsCSV back into ids, dropping blanks.
func (r RankedBusiness) ProductIDs() []string {
	return SplitCSV(r.ProductIDsCSV)
}

// ToBusiness converts the row back to the remote representation.
func (r RankedBusiness) ToBusiness() Business {
	return Business{
		ID:           r.BusinessID,
		Name:         r.BusinessName,
		CategoryID:   r.CategoryID,
		CategoryName: r.CategoryName,
		LogoURL:      r.LogoURL,
		Rating:       r.Rating,
		RatingCount:  r.RatingCount,
		ProductIDs:   r.ProductIDs(),
	}
}

// ProductPartition identifies a (business, subcategory) partition of
// ranked products.
type ProductPartition struct {
	BusinessID  string
	Subcategory string
}

// RankedProduct is one row of a business×subcategory top-K partition.
type RankedProduct struct {
	BusinessID   string  `json:"business_id"`
	Subcategory  string  `json:"subcategory"`
	ProductID    string  `json:"product_id"`
	BusinessName string  `json:"business_name"`
	ProductName  string  `json:"product_name"`
	Price        float64 `json:"price"`
	Rating       float64 `json:"rating"`
	ImageURL     string  `json:"image_url"`
	Rank         int     `json:"rank"`
}

// Partition returns the partition key of the row.
func (r RankedProduct) Partition() ProductPartition {
	return ProductPartition{BusinessID: r.BusinessID, Subcategory: r.Subcategory}
}

// ToProduct converts the row back to the remote representation.
// Description is not materialized and comes back empty.
func (r RankedProduct) ToProduct() Product {
	return Product{
		ID:         r.ProductID,
		BusinessID: r.BusinessID,
		Name:       r.ProductName,
		Category:   r.Subcategory,
		Price:      r.Price,
		Rating:     r.Rating,
		ImageURL:   r.ImageURL,
	}
}

// CategoryRow mirrors a remote category for offline chip rendering.
type CategoryRow struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// ToCategory converts the row back to the remote representation.
func (r CategoryRow) ToCategory() Category {
	return Category(r)
}

// GlobalTopProduct is a denormalized snapshot of one of the globally
// highest rated products.
type GlobalTopProduct struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Rating      float64 `json:"rating"`
	Image       string  `json:"image"`
}

// ToProduct converts the snapshot back to the remote representation.
func (g GlobalTopProduct) ToProduct() Product {
	return Product{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Category:    g.Category,
		Price:       g.Price,
		Rating:      g.Rating,
		ImageURL:    g.Image,
	}
}

// GlobalTopFromProduct builds a snapshot row from a remote product.
func GlobalTopFromProduct(p Product) GlobalTopProduct {
	return GlobalTopProduct{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Rating:      p.Rating,
		Image:       p.ImageURL,
	}
}

// JoinCSV joins ids with commas, skipping blanks.
func JoinCSV(ids []string) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return strings.Join(out, ",")
}

// SplitCSV is the inverse of JoinCSV.
func SplitCSV(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ToMillis converts a time to Unix milliseconds in UTC.
func ToMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// FromMillis converts Unix milliseconds to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
