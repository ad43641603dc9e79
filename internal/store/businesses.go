// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/bazaar/internal/models"
)

const rankedBusinessColumns = `category_id, business_id, category_name, business_name,
       logo_url, rating, rating_count, rank, computed_at, product_ids_csv`

// ReplaceBusinessPartition atomically replaces the ranked businesses of one
// category. rows may be empty, which clears the partition. When the new rows
// equal the stored ones (ignoring computed_at) nothing is written.
func (s *Store) ReplaceBusinessPartition(ctx context.Context, categoryID string, rows []models.RankedBusiness) (err error) {
	defer s.observe("replace_business_partition", time.Now(), &err)

	if strings.TrimSpace(categoryID) == "" {
		return ErrEmptyPartitionKey
	}
	if err := validateBusinessRows(categoryID, rows); err != nil {
		return err
	}

	sorted := make([]models.RankedBusiness, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := queryRankedBusinesses(ctx, tx,
			`WHERE category_id = ? ORDER BY rank ASC`, categoryID)
		if err != nil {
			return err
		}
		if sameBusinessRows(current, sorted) {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM ranked_businesses WHERE category_id = ?`, categoryID); err != nil {
			return fmt.Errorf("delete business partition %q: %w", categoryID, err)
		}
		for _, r := range sorted {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO ranked_businesses (`+rankedBusinessColumns+`)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.CategoryID, r.BusinessID, r.CategoryName, r.BusinessName,
				r.LogoURL, r.Rating, r.RatingCount, r.Rank, r.ComputedAtMillis, r.ProductIDsCSV,
			); err != nil {
				if isConstraintViolation(err) {
					return fmt.Errorf("%w: %v", ErrDuplicateRow, err)
				}
				return fmt.Errorf("insert ranked business %q: %w", r.BusinessID, err)
			}
		}
		return nil
	})
}

// ClearBusinessPartition deletes every ranked business of one category.
func (s *Store) ClearBusinessPartition(ctx context.Context, categoryID string) (err error) {
	defer s.observe("clear_business_partition", time.Now(), &err)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ranked_businesses WHERE category_id = ?`, categoryID); err != nil {
			return fmt.Errorf("clear business partition %q: %w", categoryID, err)
		}
		return nil
	})
}

// PruneBusinessPartitions deletes the partitions of every category not in
// keepCategoryIDs and returns the number of rows removed.
func (s *Store) PruneBusinessPartitions(ctx context.Context, keepCategoryIDs []string) (removed int64, err error) {
	defer s.observe("prune_business_partitions", time.Now(), &err)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		query := `DELETE FROM ranked_businesses`
		args := make([]any, 0, len(keepCategoryIDs))
		if len(keepCategoryIDs) > 0 {
			query += ` WHERE category_id NOT IN (` + placeholders(len(keepCategoryIDs)) + `)`
			for _, id := range keepCategoryIDs {
				args = append(args, id)
			}
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("prune business partitions: %w", err)
		}
		removed, _ = res.RowsAffected() //nolint:errcheck // informational
		return nil
	})
	return removed, err
}

// BusinessPartition returns the ranked businesses of one category by rank.
func (s *Store) BusinessPartition(ctx context.Context, categoryID string) (rows []models.RankedBusiness, err error) {
	defer s.observe("read_business_partition", time.Now(), &err)

	q, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	return queryRankedBusinesses(ctx, q, `WHERE category_id = ? ORDER BY rank ASC`, categoryID)
}

// AllRankedBusinesses returns every ranked business ordered by category then rank.
func (s *Store) AllRankedBusinesses(ctx context.Context) (rows []models.RankedBusiness, err error) {
	defer s.observe("read_all_ranked_businesses", time.Now(), &err)

	q, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	return queryRankedBusinesses(ctx, q, `ORDER BY category_id ASC, rank ASC`)
}

func queryRankedBusinesses(ctx context.Context, q queryer, clause string, args ...any) ([]models.RankedBusiness, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+rankedBusinessColumns+` FROM ranked_businesses `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query ranked businesses: %w", err)
	}
	defer rows.Close()

	var out []models.RankedBusiness
	for rows.Next() {
		var r models.RankedBusiness
		if err := rows.Scan(
			&r.CategoryID, &r.BusinessID, &r.CategoryName, &r.BusinessName,
			&r.LogoURL, &r.Rating, &r.RatingCount, &r.Rank, &r.ComputedAtMillis, &r.ProductIDsCSV,
		); err != nil {
			return nil, fmt.Errorf("scan ranked business: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ranked businesses: %w", err)
	}
	return out, nil
}

func validateBusinessRows(categoryID string, rows []models.RankedBusiness) error {
	ranks := make([]int, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		if r.CategoryID != categoryID {
			return fmt.Errorf("%w: business %q has category %q, partition is %q",
				ErrPartitionKeyMismatch, r.BusinessID, r.CategoryID, categoryID)
		}
		if _, dup := seen[r.BusinessID]; dup {
			return fmt.Errorf("%w: business %q", ErrDuplicateRow, r.BusinessID)
		}
		seen[r.BusinessID] = struct{}{}
		ranks[i] = r.Rank
	}
	return checkRanks(ranks)
}

// sameBusinessRows compares two rank-ordered partitions ignoring computed_at.
func sameBusinessRows(a, b []models.RankedBusiness) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		x.ComputedAtMillis, y.ComputedAtMillis = 0, 0
		if x != y {
			return false
		}
	}
	return true
}
