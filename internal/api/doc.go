// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

/*
Package api provides the loopback HTTP surface consumed by the UI layer.

Routes:

	GET  /v1/products                  all products (global top when offline)
	GET  /v1/businesses?category=ID    businesses, optionally of one category
	GET  /v1/businesses/{id}           products of one business
	GET  /v1/categories                category list
	POST /v1/categories/{id}/clicks    record a category selection
	POST /v1/prefetch                  restart the ranking job
	POST /v1/queue/replay              replay queued clicks now
	GET  /healthz                      store, network, job and cache status
	GET  /metrics                      Prometheus metrics

Read endpoints accept ?refresh=true to skip the fresh memory tier. Every
read response carries the tier that answered in the X-Data-Tier header and
in meta.tier. Stale data is still a 200; only a read with no data tier
answers 503.

Responses use the standard envelope:

	{"success": true, "data": [...], "meta": {"request_id": "...", "tier": "stale_durable"}}
*/
package api
