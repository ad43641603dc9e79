// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/bazaar/internal/models"
)

// ReplaceCategories replaces the mirrored category list, keeping input order.
// Rows with a blank id are skipped; a repeated id keeps its first position.
func (s *Store) ReplaceCategories(ctx context.Context, rows []models.CategoryRow) (err error) {
	defer s.observe("replace_categories", time.Now(), &err)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM categories`); err != nil {
			return fmt.Errorf("delete categories: %w", err)
		}
		seen := make(map[string]struct{}, len(rows))
		pos := 0
		for _, r := range rows {
			if strings.TrimSpace(r.ID) == "" {
				continue
			}
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO categories (id, name, count, position) VALUES (?, ?, ?, ?)`,
				r.ID, r.Name, r.Count, pos,
			); err != nil {
				return fmt.Errorf("insert category %q: %w", r.ID, err)
			}
			pos++
		}
		return nil
	})
}

// Categories returns the mirrored category list in stored order.
func (s *Store) Categories(ctx context.Context) (out []models.CategoryRow, err error) {
	defer s.observe("read_categories", time.Now(), &err)

	q, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `SELECT id, name, count FROM categories ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.CategoryRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Count); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// ReplaceGlobalTop replaces the global top-products snapshot, keeping input order.
func (s *Store) ReplaceGlobalTop(ctx context.Context, rows []models.GlobalTopProduct) (err error) {
	defer s.observe("replace_global_top", time.Now(), &err)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM global_top_products`); err != nil {
			return fmt.Errorf("delete global top: %w", err)
		}
		for i, r := range rows {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO global_top_products (position, id, name, description, category, price, rating, image)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				i, r.ID, r.Name, r.Description, r.Category, r.Price, r.Rating, r.Image,
			); err != nil {
				return fmt.Errorf("insert global top %q: %w", r.ID, err)
			}
		}
		return nil
	})
}

// GlobalTop returns the global top-products snapshot in stored order.
func (s *Store) GlobalTop(ctx context.Context) (out []models.GlobalTopProduct, err error) {
	defer s.observe("read_global_top", time.Now(), &err)

	q, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, description, category, price, rating, image
		   FROM global_top_products ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query global top: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.GlobalTopProduct
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.Category, &r.Price, &r.Rating, &r.Image); err != nil {
			return nil, fmt.Errorf("scan global top: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate global top: %w", err)
	}
	return out, nil
}

// SaveRecentProductIDs replaces the recently seen product ids of a business.
// Blank and repeated ids are dropped and at most MaxRecentProducts are kept.
func (s *Store) SaveRecentProductIDs(ctx context.Context, businessID string, ids []string) (err error) {
	defer s.observe("save_recent_products", time.Now(), &err)

	if strings.TrimSpace(businessID) == "" {
		return ErrEmptyPartitionKey
	}
	kept := capRecent(ids)
	now := time.Now().UTC().UnixMilli()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM recent_products WHERE business_id = ?`, businessID); err != nil {
			return fmt.Errorf("delete recent products: %w", err)
		}
		for i, id := range kept {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO recent_products (business_id, position, product_id, saved_at) VALUES (?, ?, ?, ?)`,
				businessID, i, id, now,
			); err != nil {
				return fmt.Errorf("insert recent product %q: %w", id, err)
			}
		}
		return nil
	})
}

// RecentProductIDs returns the recently seen product ids of a business.
func (s *Store) RecentProductIDs(ctx context.Context, businessID string) (ids []string, err error) {
	defer s.observe("read_recent_products", time.Now(), &err)

	q, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx,
		`SELECT product_id FROM recent_products WHERE business_id = ? ORDER BY position ASC`, businessID)
	if err != nil {
		return nil, fmt.Errorf("query recent products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan recent product: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent products: %w", err)
	}
	return ids, nil
}

func capRecent(ids []string) []string {
	out := make([]string, 0, MaxRecentProducts)
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if len(out) == MaxRecentProducts {
			break
		}
	}
	return out
}
