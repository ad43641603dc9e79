// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

// Package metrics holds the Prometheus collectors shared across Bazaar.
// Collectors are registered on the default registry via promauto and served
// by the local API at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Memory Cache Metrics
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazaar_cache_requests_total",
			Help: "Memory cache lookups by cache and result",
		},
		[]string{"cache", "result"}, // result: "hit", "miss", "stale"
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bazaar_cache_entries",
			Help: "Current number of entries in each memory cache",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazaar_cache_evictions_total",
			Help: "Entries evicted by LRU capacity pressure",
		},
		[]string{"cache"},
	)

	// Read Path Metrics
	ReadTier = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazaar_read_tier_total",
			Help: "Read use case results by the tier that served them",
		},
		[]string{"use_case", "tier"},
	)

	ReadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bazaar_read_duration_seconds",
			Help:    "Duration of read use cases including fallbacks",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"use_case"},
	)

	// Prefetch Job Metrics
	PrefetchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazaar_prefetch_runs_total",
			Help: "Ranking job runs by outcome",
		},
		[]string{"status"}, // "success", "partial_failure", "aborted"
	)

	PrefetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bazaar_prefetch_duration_seconds",
			Help:    "Duration of ranking job runs",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	PrefetchPartitionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazaar_prefetch_partition_errors_total",
			Help: "Partition writes that failed during a ranking run",
		},
		[]string{"kind"}, // "business", "product"
	)

	PrefetchLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bazaar_prefetch_last_success_timestamp",
			Help: "Unix timestamp of the last fully successful ranking run",
		},
	)

	// Durable Store Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bazaar_store_operation_duration_seconds",
			Help:    "Duration of materialized store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazaar_store_operation_errors_total",
			Help: "Materialized store operations that returned an error",
		},
		[]string{"operation"},
	)

	// Remote Service Metrics
	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazaar_remote_requests_total",
			Help: "Requests to the remote catalog service",
		},
		[]string{"endpoint", "result"}, // result: "success", "unavailable", "canceled"
	)

	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bazaar_remote_request_duration_seconds",
			Help:    "Latency of requests to the remote catalog service",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Connectivity Metrics
	NetworkOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bazaar_network_online",
			Help: "1 when the remote service is reachable, 0 otherwise",
		},
	)

	NetworkTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazaar_network_transitions_total",
			Help: "Connectivity state changes",
		},
		[]string{"to"}, // "online", "offline"
	)

	// Local API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazaar_api_requests_total",
			Help: "Total number of local API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bazaar_api_request_duration_seconds",
			Help:    "Local API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordCacheLookup records a memory cache lookup.
func RecordCacheLookup(cache, result string) {
	CacheRequests.WithLabelValues(cache, result).Inc()
}

// RecordReadTier records which tier served a read use case.
func RecordReadTier(useCase, tier string, duration time.Duration) {
	ReadTier.WithLabelValues(useCase, tier).Inc()
	ReadDuration.WithLabelValues(useCase).Observe(duration.Seconds())
}

// RecordPrefetchRun records a ranking job outcome.
func RecordPrefetchRun(status string, duration time.Duration, businessErrors, productErrors int) {
	PrefetchRuns.WithLabelValues(status).Inc()
	PrefetchDuration.Observe(duration.Seconds())
	if businessErrors > 0 {
		PrefetchPartitionErrors.WithLabelValues("business").Add(float64(businessErrors))
	}
	if productErrors > 0 {
		PrefetchPartitionErrors.WithLabelValues("product").Add(float64(productErrors))
	}
	if status == "success" {
		PrefetchLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordStoreOperation records a materialized store operation.
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreOperationErrors.WithLabelValues(operation).Inc()
	}
}

// RecordRemoteRequest records a call to the remote catalog service.
func RecordRemoteRequest(endpoint, result string, duration time.Duration) {
	RemoteRequests.WithLabelValues(endpoint, result).Inc()
	RemoteRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// SetNetworkOnline records the current connectivity state.
func SetNetworkOnline(online bool) {
	if online {
		NetworkOnline.Set(1)
		NetworkTransitions.WithLabelValues("online").Inc()
		return
	}
	NetworkOnline.Set(0)
	NetworkTransitions.WithLabelValues("offline").Inc()
}

// RecordAPIRequest records a local API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
