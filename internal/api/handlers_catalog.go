// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/bazaar/internal/catalog"
	"github.com/tomtom215/bazaar/internal/logging"
	"github.com/tomtom215/bazaar/internal/validation"
	"github.com/tomtom215/bazaar/internal/wal"
)

type businessesQuery struct {
	CategoryID string `validate:"omitempty,catalogid"`
}

type businessPath struct {
	BusinessID string `validate:"catalogid"`
}

type categoryPath struct {
	CategoryID string `validate:"catalogid"`
}

// ClickResponse is the body of a recorded category click.
type ClickResponse struct {
	CategoryID string `json:"category_id"`
	Result     string `json:"result"`
}

// Products handles GET /v1/products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	opts, ok := readOptions(w, r)
	if !ok {
		return
	}
	res, err := h.catalog.Products(r.Context(), opts)
	writeRead(w, r, res.Items, res.Tier, err)
}

// Businesses handles GET /v1/businesses.
func (h *Handler) Businesses(w http.ResponseWriter, r *http.Request) {
	q := businessesQuery{CategoryID: r.URL.Query().Get("category")}
	if !validateRequest(w, r, q) {
		return
	}
	opts, ok := readOptions(w, r)
	if !ok {
		return
	}
	res, err := h.catalog.Businesses(r.Context(), q.CategoryID, opts)
	writeRead(w, r, res.Items, res.Tier, err)
}

// BusinessDetail handles GET /v1/businesses/{id}.
func (h *Handler) BusinessDetail(w http.ResponseWriter, r *http.Request) {
	p := businessPath{BusinessID: chi.URLParam(r, "id")}
	if !validateRequest(w, r, p) {
		return
	}
	opts, ok := readOptions(w, r)
	if !ok {
		return
	}
	res, err := h.catalog.BusinessDetail(r.Context(), p.BusinessID, opts)
	writeRead(w, r, res.Items, res.Tier, err)
}

// Categories handles GET /v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	res, err := h.catalog.Categories(r.Context())
	writeRead(w, r, res.Items, res.Tier, err)
}

// ClickCategory handles POST /v1/categories/{id}/clicks. A click that
// could not reach the remote service is queued and answers 202.
func (h *Handler) ClickCategory(w http.ResponseWriter, r *http.Request) {
	p := categoryPath{CategoryID: chi.URLParam(r, "id")}
	if !validateRequest(w, r, p) {
		return
	}

	rw := NewResponseWriter(w, r)
	result, err := h.catalog.ClickCategory(r.Context(), p.CategoryID)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		rw.Error(StatusClientClosedRequest, ErrCodeRequestCanceled, "Request canceled")
		return
	case errors.Is(err, wal.ErrEmptyTargetID):
		rw.BadRequest("category id is required")
		return
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("category_id", p.CategoryID).Msg("Category click lost")
		rw.InternalError("Failed to record category click")
		return
	}

	body := ClickResponse{CategoryID: p.CategoryID, Result: result.String()}
	if result == catalog.ClickQueued {
		rw.Accepted(body)
		return
	}
	rw.Success(body)
}

// readOptions parses the optional refresh query parameter.
func readOptions(w http.ResponseWriter, r *http.Request) (catalog.ReadOptions, bool) {
	raw := r.URL.Query().Get("refresh")
	if raw == "" {
		return catalog.ReadOptions{}, true
	}
	force, err := strconv.ParseBool(raw)
	if err != nil {
		NewResponseWriter(w, r).ValidationError("refresh must be a boolean", map[string]interface{}{
			"field": "refresh",
			"value": raw,
		})
		return catalog.ReadOptions{}, false
	}
	return catalog.ReadOptions{ForceRefresh: force}, true
}

// validateRequest validates s and writes a 400 on failure.
func validateRequest(w http.ResponseWriter, r *http.Request, s interface{}) bool {
	verr := validation.ValidateStruct(s)
	if verr == nil {
		return true
	}
	apiErr := verr.ToAPIError()
	NewResponseWriter(w, r).ValidationError(apiErr.Message, apiErr.Details)
	return false
}

// writeRead writes the outcome of a read use case.
func writeRead[T any](w http.ResponseWriter, r *http.Request, items []T, tier catalog.Tier, err error) {
	rw := NewResponseWriter(w, r)
	w.Header().Set(DataTierHeader, tier.String())

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		rw.Error(StatusClientClosedRequest, ErrCodeRequestCanceled, "Request canceled")
		return
	case errors.Is(err, catalog.ErrUnavailable):
		rw.ServiceUnavailable("Catalog data is unavailable, try again when online")
		return
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Catalog read failed")
		rw.InternalError("Catalog read failed")
		return
	}

	if items == nil {
		items = []T{}
	}
	count := len(items)
	rw.SuccessWithMeta(http.StatusOK, items, &APIMeta{
		Tier:  tier.String(),
		Stale: tier.Stale(),
		Count: &count,
	})
}
