// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package ranking

import (
	"fmt"
	"testing"

	"github.com/tomtom215/bazaar/internal/models"
)

func businessIDs(bs []models.Business) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.ID
	}
	return out
}

func TestTopBusinesses(t *testing.T) {
	t.Parallel()

	food := models.Category{ID: "food", Name: "Food & Drink"}

	tests := []struct {
		name       string
		businesses []models.Business
		want       string
	}{
		{
			name: "rating desc",
			businesses: []models.Business{
				{ID: "b1", Name: "A", CategoryID: "food", Rating: 3.0},
				{ID: "b2", Name: "B", CategoryID: "food", Rating: 4.8},
				{ID: "b3", Name: "C", CategoryID: "food", Rating: 4.1},
			},
			want: "[b2 b3]",
		},
		{
			name: "rating count breaks rating tie",
			businesses: []models.Business{
				{ID: "b1", Name: "A", CategoryID: "food", Rating: 4.5, RatingCount: 3},
				{ID: "b2", Name: "B", CategoryID: "food", Rating: 4.5, RatingCount: 30},
			},
			want: "[b2 b1]",
		},
		{
			name: "name then id break full tie",
			businesses: []models.Business{
				{ID: "b9", Name: "Zed", CategoryID: "food", Rating: 4, RatingCount: 1},
				{ID: "b5", Name: "Alpha", CategoryID: "food", Rating: 4, RatingCount: 1},
				{ID: "b4", Name: "Alpha", CategoryID: "food", Rating: 4, RatingCount: 1},
			},
			want: "[b4 b5]",
		},
		{
			name: "matches by trimmed case-insensitive id or name",
			businesses: []models.Business{
				{ID: "b1", CategoryID: "  FOOD ", Rating: 1},
				{ID: "b2", CategoryName: "food & drink", Rating: 2},
				{ID: "b3", CategoryID: "retail", CategoryName: "Retail", Rating: 5},
			},
			want: "[b2 b1]",
		},
		{
			name: "blank and duplicate ids skipped",
			businesses: []models.Business{
				{ID: "", CategoryID: "food", Rating: 5},
				{ID: "b1", CategoryID: "food", Rating: 2},
				{ID: "b1", CategoryID: "food", Rating: 2},
			},
			want: "[b1]",
		},
		{
			name:       "no match",
			businesses: []models.Business{{ID: "b1", CategoryID: "retail"}},
			want:       "[]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := businessIDs(TopBusinesses(food, tt.businesses, 2))
			if fmt.Sprint(got) != tt.want {
				t.Errorf("TopBusinesses = %v, want %s", got, tt.want)
			}
		})
	}
}

func TestTopProductsBySubcategory(t *testing.T) {
	t.Parallel()

	products := []models.Product{
		{ID: "p1", Name: "Rye", Category: "Bread", Rating: 4.0},
		{ID: "p2", Name: "Bagel", Category: " bread", Rating: 4.9},
		{ID: "p3", Name: "Anadama", Category: "BREAD", Rating: 4.0},
		{ID: "p4", Name: "Eclair", Category: "Cakes", Rating: 3.2},
		{ID: "p2", Name: "Bagel dup", Category: "bread", Rating: 1},
		{ID: "", Name: "ghost", Category: "bread", Rating: 5},
	}

	groups := TopProductsBySubcategory(products, 2)
	if len(groups) != 2 {
		t.Fatalf("groups = %v, want bread and cakes", groups)
	}

	var bread []string
	for _, p := range groups["bread"] {
		bread = append(bread, p.ID)
	}
	if fmt.Sprint(bread) != "[p2 p3]" {
		t.Errorf("bread = %v, want [p2 p3]", bread)
	}
	if len(groups["cakes"]) != 1 || groups["cakes"][0].ID != "p4" {
		t.Errorf("cakes = %+v", groups["cakes"])
	}
}

func TestTopProducts(t *testing.T) {
	t.Parallel()

	products := []models.Product{
		{ID: "p1", Name: "B", Rating: 4},
		{ID: "p2", Name: "A", Rating: 4},
		{ID: "p3", Name: "C", Rating: 5},
	}
	var got []string
	for _, p := range TopProducts(products, 2) {
		got = append(got, p.ID)
	}
	if fmt.Sprint(got) != "[p3 p2]" {
		t.Errorf("TopProducts = %v, want [p3 p2]", got)
	}
}

func TestRankBusinessesContiguous(t *testing.T) {
	t.Parallel()

	c := models.Category{ID: "food", Name: "Food"}
	top := []models.Business{
		{ID: "b1", Name: "One", ProductIDs: []string{"p1", " ", "p2"}},
		{ID: "b2", Name: "Two"},
	}
	rows := rankBusinesses(c, top, 42)
	for i, r := range rows {
		if r.Rank != i+1 || r.CategoryID != "food" || r.ComputedAtMillis != 42 {
			t.Errorf("row %d = %+v", i, r)
		}
	}
	if rows[0].ProductIDsCSV != "p1,p2" {
		t.Errorf("csv = %q", rows[0].ProductIDsCSV)
	}
}

func TestOutcomeHelpers(t *testing.T) {
	t.Parallel()

	if (Outcome{Status: StatusSuccess}).Err() != nil {
		t.Error("success outcome has an error")
	}
	if err := (Outcome{Status: StatusAborted, Reason: "no businesses"}).Err(); err == nil {
		t.Error("aborted outcome has no error")
	}

	o := Outcome{
		Status: StatusPartialFailure,
		PartitionErrors: []PartitionError{
			{Kind: KindBusiness, Key: "food", Err: fmt.Errorf("disk")},
			{Kind: KindProduct, Key: "b1", Err: fmt.Errorf("net")},
			{Kind: KindProduct, Key: "b2", Err: fmt.Errorf("net")},
		},
	}
	if o.CountErrors(KindProduct) != 2 || o.CountErrors(KindBusiness) != 1 {
		t.Errorf("counts = %d/%d", o.CountErrors(KindProduct), o.CountErrors(KindBusiness))
	}
	if o.Err() == nil {
		t.Error("partial failure outcome has no error")
	}

	for s, want := range map[Status]string{
		StatusSuccess: "success", StatusPartialFailure: "partial_failure", StatusAborted: "aborted", Status(9): "unknown",
	} {
		if s.String() != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}
