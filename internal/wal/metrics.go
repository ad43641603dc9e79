// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package wal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for offline queue operations
var (
	queueEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offline_queue_enqueued_total",
		Help: "Total number of intents appended to the offline queue",
	})

	queueDrainedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offline_queue_drained_total",
		Help: "Total number of intents removed by drains",
	})

	queueRequeuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offline_queue_requeued_total",
		Help: "Total number of intents re-appended after a failed replay",
	})

	queueWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offline_queue_write_failures_total",
		Help: "Total number of failed offline queue writes",
	})

	// queuePendingIntents is refreshed by Stats and after every drain.
	queuePendingIntents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "offline_queue_pending_intents",
		Help: "Current number of intents waiting for replay",
	})

	queueWriteLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "offline_queue_write_latency_seconds",
		Help:    "Offline queue append latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	queueDBSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "offline_queue_db_size_bytes",
		Help: "BadgerDB database size in bytes",
	})

	queueGCLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "offline_queue_gc_latency_seconds",
		Help:    "BadgerDB value log GC latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 0.01s to ~40s
	})

	queueGCRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offline_queue_gc_runs_total",
		Help: "Total number of BadgerDB value log GC runs",
	})
)

// RecordEnqueue increments the enqueue counter.
func RecordEnqueue() {
	queueEnqueuedTotal.Inc()
}

// RecordDrained adds n drained intents.
func RecordDrained(n int) {
	queueDrainedTotal.Add(float64(n))
}

// RecordRequeue increments the requeue counter.
func RecordRequeue() {
	queueRequeuedTotal.Inc()
}

// RecordWriteFailure increments the write failure counter.
func RecordWriteFailure() {
	queueWriteFailures.Inc()
}

// UpdatePendingIntents sets the pending intents gauge.
func UpdatePendingIntents(count int64) {
	queuePendingIntents.Set(float64(count))
}

// RecordWriteLatency records append latency.
func RecordWriteLatency(seconds float64) {
	queueWriteLatency.Observe(seconds)
}

// UpdateDBSize sets the database size gauge.
func UpdateDBSize(bytes int64) {
	queueDBSizeBytes.Set(float64(bytes))
}

// RecordGCLatency records value log GC latency.
func RecordGCLatency(seconds float64) {
	queueGCLatency.Observe(seconds)
}

// RecordGCRun increments the GC run counter.
func RecordGCRun() {
	queueGCRuns.Inc()
}
