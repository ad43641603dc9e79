// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package wal

import (
	"context"
	"time"

	"github.com/tomtom215/bazaar/internal/logging"
)

// GCService periodically reclaims value log space and refreshes the
// queue gauges. It implements suture.Service.
type GCService struct {
	queue    *Queue
	interval time.Duration
}

// NewGCService creates a GC service running every interval.
// A non-positive interval falls back to the queue's GCInterval.
func NewGCService(q *Queue, interval time.Duration) *GCService {
	if interval <= 0 {
		interval = q.config.GCInterval
	}
	if interval <= 0 {
		interval = DefaultConfig().GCInterval
	}
	return &GCService{queue: q, interval: interval}
}

// Serve runs until ctx is canceled.
func (s *GCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", s.interval).Msg("Offline queue GC started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Offline queue GC stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *GCService) runOnce() {
	if err := s.queue.RunGC(); err != nil {
		logging.Warn().Err(err).Msg("Offline queue GC failed")
		return
	}
	stats := s.queue.Stats()
	logging.Debug().
		Int64("pending", stats.PendingCount).
		Int64("db_size_bytes", stats.DBSizeBytes).
		Msg("Offline queue GC complete")
}

// String implements fmt.Stringer for suture logging.
func (s *GCService) String() string {
	return "offline-queue-gc"
}
