// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/bazaar/internal/cache"
	"github.com/tomtom215/bazaar/internal/logging"
)

// healthPingTimeout bounds the store ping of /healthz.
const healthPingTimeout = 2 * time.Second

// PrefetchResponse is the body of POST /v1/prefetch.
type PrefetchResponse struct {
	Accepted bool `json:"accepted"`
	Running  bool `json:"running"`
}

// PrefetchStatus describes the ranking job in /healthz.
type PrefetchStatus struct {
	Pending    bool       `json:"pending"`
	Running    bool       `json:"running"`
	Runs       int64      `json:"runs"`
	LastStatus string     `json:"last_status,omitempty"`
	LastReason string     `json:"last_reason,omitempty"`
	LastErrors int        `json:"last_partition_errors"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastRunMs  int64      `json:"last_run_ms,omitempty"`
	Categories int        `json:"categories,omitempty"`
	Businesses int        `json:"eligible_businesses,omitempty"`
	Partitions int        `json:"product_partitions,omitempty"`
}

// QueueStatus describes the offline click queue in /healthz.
type QueueStatus struct {
	Pending   int64      `json:"pending"`
	Enqueued  int64      `json:"enqueued"`
	Drained   int64      `json:"drained"`
	Requeued  int64      `json:"requeued"`
	LastDrain *time.Time `json:"last_drain,omitempty"`
}

// HealthStatus is the body of GET /healthz.
type HealthStatus struct {
	Status        string          `json:"status"`
	Online        bool            `json:"online"`
	StoreOK       bool            `json:"store_ok"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	Prefetch      *PrefetchStatus `json:"prefetch,omitempty"`
	Queue         *QueueStatus    `json:"queue,omitempty"`
	Caches        []cache.Stats   `json:"caches"`
}

// Prefetch handles POST /v1/prefetch. It cancels a running job and
// schedules a new run.
func (h *Handler) Prefetch(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.prefetch == nil {
		rw.ServiceUnavailable("Prefetch is not configured")
		return
	}
	accepted := h.prefetch.Enqueue(true)
	logging.Ctx(r.Context()).Info().Bool("accepted", accepted).Msg("Manual prefetch requested")
	rw.Accepted(PrefetchResponse{
		Accepted: accepted,
		Running:  h.prefetch.Status().Running,
	})
}

// ReplayQueue handles POST /v1/queue/replay. A replay cut short by a
// deadline still answers 200; the report's Requeued count holds what is
// left for the next replay.
func (h *Handler) ReplayQueue(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	report, err := h.catalog.ReplayPending(r.Context())
	switch {
	case err == nil:
		rw.Success(report)
	case errors.Is(err, context.DeadlineExceeded):
		logging.Ctx(r.Context()).Warn().
			Int("replayed", report.Replayed).
			Int("requeued", report.Requeued).
			Msg("Queue replay ran out of time")
		rw.Success(report)
	case errors.Is(err, context.Canceled):
		rw.Error(StatusClientClosedRequest, ErrCodeRequestCanceled, "Request canceled")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Queue replay failed")
		rw.InternalError("Queue replay failed")
	}
}

// Health handles GET /healthz. It answers 503 only when the store is
// down; being offline is a normal operating state.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:        "healthy",
		Online:        h.network != nil && h.network.Online(),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Caches:        h.catalog.CacheStats(),
	}

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		err := h.store.Ping(ctx)
		cancel()
		health.StoreOK = err == nil
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Store ping failed")
		}
	}

	if h.prefetch != nil {
		health.Prefetch = prefetchStatus(h.prefetch)
	}
	if h.queue != nil {
		s := h.queue.Stats()
		health.Queue = &QueueStatus{
			Pending:  s.PendingCount,
			Enqueued: s.TotalEnqueued,
			Drained:  s.TotalDrained,
			Requeued: s.TotalRequeued,
		}
		if !s.LastDrain.IsZero() {
			health.Queue.LastDrain = &s.LastDrain
		}
	}

	rw := NewResponseWriter(w, r)
	switch {
	case !health.StoreOK:
		health.Status = "unhealthy"
		rw.SuccessWithMeta(http.StatusServiceUnavailable, health, nil)
		return
	case !health.Online:
		health.Status = "offline"
	}
	rw.Success(health)
}

func prefetchStatus(p Prefetcher) *PrefetchStatus {
	st := p.Status()
	out := &PrefetchStatus{
		Pending: st.Pending,
		Running: st.Running,
		Runs:    st.Runs,
	}
	if !st.LastRunAt.IsZero() {
		out.LastRunAt = &st.LastRunAt
	}
	if o := st.LastOutcome; o != nil {
		out.LastStatus = o.Status.String()
		out.LastReason = o.Reason
		out.LastErrors = len(o.PartitionErrors)
		out.LastRunMs = o.Duration.Milliseconds()
		out.Categories = o.Categories
		out.Businesses = o.EligibleBusinesses
		out.Partitions = o.ProductPartitions
	}
	return out
}
