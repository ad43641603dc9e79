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

const rankedProductColumns = `business_id, subcategory, product_id, business_name,
       product_name, price, rating, image_url, rank`

// ReplaceProductPartition atomically replaces the ranked products of one
// business×subcategory partition. Identical content is not rewritten.
func (s *Store) ReplaceProductPartition(ctx context.Context, key models.ProductPartition, rows []models.RankedProduct) (err error) {
	defer s.observe("replace_product_partition", time.Now(), &err)

	if strings.TrimSpace(key.BusinessID) == "" {
		return ErrEmptyPartitionKey
	}
	if err := validateProductRows(key, rows); err != nil {
		return err
	}

	sorted := make([]models.RankedProduct, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := queryRankedProducts(ctx, tx,
			`WHERE business_id = ? AND subcategory = ? ORDER BY rank ASC`, key.BusinessID, key.Subcategory)
		if err != nil {
			return err
		}
		if sameProductRows(current, sorted) {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM ranked_products WHERE business_id = ? AND subcategory = ?`,
			key.BusinessID, key.Subcategory,
		); err != nil {
			return fmt.Errorf("delete product partition %v: %w", key, err)
		}
		for _, r := range sorted {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO ranked_products (`+rankedProductColumns+`)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.BusinessID, r.Subcategory, r.ProductID, r.BusinessName,
				r.ProductName, r.Price, r.Rating, r.ImageURL, r.Rank,
			); err != nil {
				if isConstraintViolation(err) {
					return fmt.Errorf("%w: %v", ErrDuplicateRow, err)
				}
				return fmt.Errorf("insert ranked product %q: %w", r.ProductID, err)
			}
		}
		return nil
	})
}

// ClearProductPartition deletes one business×subcategory partition.
func (s *Store) ClearProductPartition(ctx context.Context, key models.ProductPartition) (err error) {
	defer s.observe("clear_product_partition", time.Now(), &err)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM ranked_products WHERE business_id = ? AND subcategory = ?`,
			key.BusinessID, key.Subcategory,
		); err != nil {
			return fmt.Errorf("clear product partition %v: %w", key, err)
		}
		return nil
	})
}

// PruneProductPartitions deletes the product partitions of every business not
// in keepBusinessIDs and returns the number of rows removed.
func (s *Store) PruneProductPartitions(ctx context.Context, keepBusinessIDs []string) (removed int64, err error) {
	defer s.observe("prune_product_partitions", time.Now(), &err)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		query := `DELETE FROM ranked_products`
		args := make([]any, 0, len(keepBusinessIDs))
		if len(keepBusinessIDs) > 0 {
			query += ` WHERE business_id NOT IN (` + placeholders(len(keepBusinessIDs)) + `)`
			for _, id := range keepBusinessIDs {
				args = append(args, id)
			}
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("prune product partitions: %w", err)
		}
		removed, _ = res.RowsAffected() //nolint:errcheck // informational
		return nil
	})
	return removed, err
}

// ProductPartition returns one partition ordered by rank.
func (s *Store) ProductPartition(ctx context.Context, key models.ProductPartition) (rows []models.RankedProduct, err error) {
	defer s.observe("read_product_partition", time.Now(), &err)

	q, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	return queryRankedProducts(ctx, q,
		`WHERE business_id = ? AND subcategory = ? ORDER BY rank ASC`, key.BusinessID, key.Subcategory)
}

// RankedProductsForBusiness returns every ranked product of a business
// ordered by subcategory then rank.
func (s *Store) RankedProductsForBusiness(ctx context.Context, businessID string) (rows []models.RankedProduct, err error) {
	defer s.observe("read_ranked_products_for_business", time.Now(), &err)

	q, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	return queryRankedProducts(ctx, q,
		`WHERE business_id = ? ORDER BY subcategory ASC, rank ASC`, businessID)
}

// AllRankedProducts returns every ranked product ordered by partition key then rank.
func (s *Store) AllRankedProducts(ctx context.Context) (rows []models.RankedProduct, err error) {
	defer s.observe("read_all_ranked_products", time.Now(), &err)

	q, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	return queryRankedProducts(ctx, q, `ORDER BY business_id ASC, subcategory ASC, rank ASC`)
}

// ProductSubcategories lists the subcategories that currently have a
// partition for the business.
func (s *Store) ProductSubcategories(ctx context.Context, businessID string) (subs []string, err error) {
	defer s.observe("read_product_subcategories", time.Now(), &err)

	q, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx,
		`SELECT DISTINCT subcategory FROM ranked_products WHERE business_id = ? ORDER BY subcategory ASC`,
		businessID)
	if err != nil {
		return nil, fmt.Errorf("query product subcategories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sub string
		if err := rows.Scan(&sub); err != nil {
			return nil, fmt.Errorf("scan subcategory: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subcategories: %w", err)
	}
	return subs, nil
}

func queryRankedProducts(ctx context.Context, q queryer, clause string, args ...any) ([]models.RankedProduct, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+rankedProductColumns+` FROM ranked_products `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query ranked products: %w", err)
	}
	defer rows.Close()

	var out []models.RankedProduct
	for rows.Next() {
		var r models.RankedProduct
		if err := rows.Scan(
			&r.BusinessID, &r.Subcategory, &r.ProductID, &r.BusinessName,
			&r.ProductName, &r.Price, &r.Rating, &r.ImageURL, &r.Rank,
		); err != nil {
			return nil, fmt.Errorf("scan ranked product: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ranked products: %w", err)
	}
	return out, nil
}

func validateProductRows(key models.ProductPartition, rows []models.RankedProduct) error {
	ranks := make([]int, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		if r.Partition() != key {
			return fmt.Errorf("%w: product %q has partition %v, want %v",
				ErrPartitionKeyMismatch, r.ProductID, r.Partition(), key)
		}
		if _, dup := seen[r.ProductID]; dup {
			return fmt.Errorf("%w: product %q", ErrDuplicateRow, r.ProductID)
		}
		seen[r.ProductID] = struct{}{}
		ranks[i] = r.Rank
	}
	return checkRanks(ranks)
}

func sameProductRows(a, b []models.RankedProduct) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
