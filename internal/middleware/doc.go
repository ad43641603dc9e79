// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

/*
Package middleware provides HTTP middleware for the local API.

  - RequestID: assigns an X-Request-ID and a logging correlation ID
  - PrometheusMetrics: records request count and latency per route

Both use the http.HandlerFunc shape and are adapted to chi in the api
package:

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

Requests are labeled by chi route pattern (e.g. /v1/businesses/{id}) so
path parameters do not inflate metric cardinality.
*/
package middleware
