// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

//go:build duckdb

package store

import (
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DuckDBAvailable reports whether the DuckDB driver is compiled in.
const DuckDBAvailable = true

func openDuckDB(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path+"?access_mode=read_write&threads=2")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// DuckDB allows a single writer per process; one connection keeps
	// transactions on the same handle.
	db.SetMaxOpenConns(1)
	return db, nil
}
