// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

// Package migrations embeds the materialized store schema.
package migrations

import "embed"

// FS contains the numbered SQL migrations, applied in lexical order.
//
//go:embed *.sql
var FS embed.FS
