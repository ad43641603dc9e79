// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

/*
Package models defines the data structures shared by the catalog layers.

Two families of types live here:

  - Remote catalog records (Business, Product, Category) exactly as the
    remote catalog service returns them. They flow into the memory caches
    and are what the read path hands to the UI.
  - Materialized rows (RankedBusiness, RankedProduct, CategoryRow,
    GlobalTopProduct) persisted by the durable store. The ranking job owns
    them; the read path only reads them and converts back to remote
    records with the To* helpers.

Millisecond timestamps are used for every persisted time value so rows
compare byte-for-byte across runs.
*/
package models
