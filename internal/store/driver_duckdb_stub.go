// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

//go:build !duckdb

package store

import (
	"database/sql"
	"fmt"
)

// DuckDBAvailable reports whether the DuckDB driver is compiled in.
const DuckDBAvailable = false

func openDuckDB(string) (*sql.DB, error) {
	return nil, fmt.Errorf("%w: rebuild with -tags duckdb", ErrDriverUnavailable)
}
