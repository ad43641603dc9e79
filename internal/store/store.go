// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

// Package store persists the materialized view of the catalog: the top
// ranked businesses per category, the top ranked products per business and
// subcategory, the category list, a global top-products snapshot and a short
// per-business list of recently seen product ids.
//
// Partitions are replaced atomically: a replace deletes the partition and
// inserts the new rows inside one transaction, so readers observe either the
// old or the new partition, never a mix. All writes are serialized by a
// single store mutex.
//
// The default driver is pure-Go SQLite (modernc.org/sqlite). DuckDB is
// available when built with -tags duckdb.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/bazaar/internal/logging"
	"github.com/tomtom215/bazaar/internal/metrics"
	"github.com/tomtom215/bazaar/internal/store/migrations"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverDuckDB = "duckdb"
)

// MaxRecentProducts caps the recently-seen product id list per business.
const MaxRecentProducts = 10

var (
	// ErrNonContiguousRanks is returned when a partition's ranks are not exactly 1..N.
	ErrNonContiguousRanks = errors.New("store: ranks must be exactly 1..N")

	// ErrPartitionKeyMismatch is returned when a row does not belong to the partition being replaced.
	ErrPartitionKeyMismatch = errors.New("store: row does not belong to partition")

	// ErrEmptyPartitionKey is returned when a partition key is blank.
	ErrEmptyPartitionKey = errors.New("store: partition key is required")

	// ErrDuplicateRow is returned when a partition contains the same entity twice.
	ErrDuplicateRow = errors.New("store: duplicate row in partition")

	// ErrDriverUnavailable is returned when the configured driver is not compiled in.
	ErrDriverUnavailable = errors.New("store: driver not available in this build")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store: closed")
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store is the durable materialized store.
type Store struct {
	db     *sql.DB
	driver string

	// mu serializes every write transaction.
	mu     sync.Mutex
	closed bool
}

// Open opens the store at path with the given driver and applies embedded
// migrations. An empty driver selects SQLite.
func Open(ctx context.Context, driver, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if driver == "" {
		driver = DriverSQLite
	}
	cleanPath := filepath.Clean(path)

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = openSQLite(cleanPath)
	case DriverDuckDB:
		db, err = openDuckDB(cleanPath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logging.Info().
		Str("driver", driver).
		Str("path", cleanPath).
		Msg("Materialized store opened")

	return &Store{db: db, driver: driver}, nil
}

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// Close closes the database handle. It waits for an in-flight write.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// withTx runs fn inside one write transaction under the store mutex.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// reader returns the handle used by read operations.
func (s *Store) reader(ctx context.Context) (queryer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

// observe records duration and error of a store operation.
//
//	defer s.observe("replace_business_partition", time.Now(), &err)
func (s *Store) observe(operation string, start time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	metrics.RecordStoreOperation(operation, time.Since(start), err)
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func closeQuietly(db *sql.DB) {
	if err := db.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close database handle")
	}
}

// checkRanks verifies ranks are exactly {1..N}.
func checkRanks(ranks []int) error {
	seen := make([]bool, len(ranks)+1)
	for _, r := range ranks {
		if r < 1 || r > len(ranks) || seen[r] {
			return fmt.Errorf("%w: got rank %d in partition of %d rows", ErrNonContiguousRanks, r, len(ranks))
		}
		seen[r] = true
	}
	return nil
}
