// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/bazaar/internal/middleware"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil mw takes the default middleware
// configuration.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // must be global to answer OPTIONS preflight
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, r, "Route not found")
	})
	r.MethodNotAllowed(WriteMethodNotAllowed)

	r.Group(func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Get("/healthz", router.handler.Health)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())

		r.Get("/products", router.handler.Products)
		r.Get("/businesses", router.handler.Businesses)
		r.Get("/businesses/{id}", router.handler.BusinessDetail)
		r.Get("/categories", router.handler.Categories)
		r.Post("/categories/{id}/clicks", router.handler.ClickCategory)
		r.Post("/queue/replay", router.handler.ReplayQueue)

		r.With(router.chiMiddleware.RateLimitPrefetch()).Post("/prefetch", router.handler.Prefetch)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
