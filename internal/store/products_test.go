// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tomtom215/bazaar/internal/models"
)

func rankedProduct(business, sub, id string, rank int) models.RankedProduct {
	return models.RankedProduct{
		BusinessID:   business,
		Subcategory:  sub,
		ProductID:    id,
		BusinessName: "Business " + business,
		ProductName:  "Product " + id,
		Price:        9.99,
		Rating:       4.0,
		Rank:         rank,
	}
}

func productIDs(rows []models.RankedProduct) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ProductID
	}
	return out
}

func TestReplaceProductPartition_RoundTrip(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()
	key := models.ProductPartition{BusinessID: "b1", Subcategory: "bread"}

	if err := s.ReplaceProductPartition(ctx, key, []models.RankedProduct{
		rankedProduct("b1", "bread", "p2", 2),
		rankedProduct("b1", "bread", "p1", 1),
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := s.ReplaceProductPartition(ctx, key, []models.RankedProduct{
		rankedProduct("b1", "bread", "p3", 1),
		rankedProduct("b1", "bread", "p1", 2),
	}); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	got, err := s.ProductPartition(ctx, key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ids := productIDs(got); fmt.Sprint(ids) != "[p3 p1]" {
		t.Errorf("partition = %v, want [p3 p1]", ids)
	}
}

func TestReplaceProductPartition_Validation(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()
	key := models.ProductPartition{BusinessID: "b1", Subcategory: "bread"}

	err := s.ReplaceProductPartition(ctx, key, []models.RankedProduct{rankedProduct("b1", "cakes", "p1", 1)})
	if !errors.Is(err, ErrPartitionKeyMismatch) {
		t.Errorf("err = %v, want ErrPartitionKeyMismatch", err)
	}

	err = s.ReplaceProductPartition(ctx, key, []models.RankedProduct{
		rankedProduct("b1", "bread", "p1", 1),
		rankedProduct("b1", "bread", "p2", 3),
	})
	if !errors.Is(err, ErrNonContiguousRanks) {
		t.Errorf("err = %v, want ErrNonContiguousRanks", err)
	}

	err = s.ReplaceProductPartition(ctx, models.ProductPartition{Subcategory: "bread"}, nil)
	if !errors.Is(err, ErrEmptyPartitionKey) {
		t.Errorf("err = %v, want ErrEmptyPartitionKey", err)
	}
}

func TestRankedProductsForBusinessAndSubcategories(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()

	seed := map[models.ProductPartition][]models.RankedProduct{
		{BusinessID: "b1", Subcategory: "cakes"}: {rankedProduct("b1", "cakes", "c1", 1)},
		{BusinessID: "b1", Subcategory: "bread"}: {
			rankedProduct("b1", "bread", "r2", 2),
			rankedProduct("b1", "bread", "r1", 1),
		},
		{BusinessID: "b2", Subcategory: "bread"}: {rankedProduct("b2", "bread", "x1", 1)},
	}
	for key, rows := range seed {
		if err := s.ReplaceProductPartition(ctx, key, rows); err != nil {
			t.Fatalf("replace %v: %v", key, err)
		}
	}

	got, err := s.RankedProductsForBusiness(ctx, "b1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ids := productIDs(got); fmt.Sprint(ids) != "[r1 r2 c1]" {
		t.Errorf("b1 products = %v, want [r1 r2 c1]", ids)
	}

	subs, err := s.ProductSubcategories(ctx, "b1")
	if err != nil {
		t.Fatalf("subcategories: %v", err)
	}
	if fmt.Sprint(subs) != "[bread cakes]" {
		t.Errorf("subcategories = %v, want [bread cakes]", subs)
	}

	if err := s.ClearProductPartition(ctx, models.ProductPartition{BusinessID: "b1", Subcategory: "cakes"}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	subs, err = s.ProductSubcategories(ctx, "b1")
	if err != nil {
		t.Fatalf("subcategories: %v", err)
	}
	if fmt.Sprint(subs) != "[bread]" {
		t.Errorf("subcategories after clear = %v, want [bread]", subs)
	}

	removed, err := s.PruneProductPartitions(ctx, []string{"b2"})
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	all, err := s.AllRankedProducts(ctx)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if ids := productIDs(all); fmt.Sprint(ids) != "[x1]" {
		t.Errorf("all products = %v, want [x1]", ids)
	}

	if _, err := s.PruneProductPartitions(ctx, nil); err != nil {
		t.Fatalf("prune all: %v", err)
	}
	if all, _ = s.AllRankedProducts(ctx); len(all) != 0 {
		t.Errorf("prune with no keepers should empty the table, got %v", productIDs(all))
	}
}
