// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

// Package trigger schedules the ranking job as unique work: at most one run
// is pending or running at a time.
package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/bazaar/internal/logging"
	"github.com/tomtom215/bazaar/internal/metrics"
	"github.com/tomtom215/bazaar/internal/ranking"
)

// Runner executes one ranking pass.
type Runner interface {
	Run(ctx context.Context) ranking.Outcome
}

// Connectivity gates runs on network availability.
type Connectivity interface {
	WaitOnline(ctx context.Context) error
}

// Status is a snapshot of the trigger state.
type Status struct {
	Pending     bool
	Running     bool
	Runs        int64
	LastOutcome *ranking.Outcome
	LastRunAt   time.Time
}

// Trigger is the job trigger. It is a suture service.
type Trigger struct {
	runner     Runner
	network    Connectivity
	runTimeout time.Duration
	logger     zerolog.Logger

	wake chan struct{}

	mu        sync.Mutex
	pending   bool
	running   bool
	cancelRun context.CancelFunc
	runs      int64
	last      *ranking.Outcome
	lastRunAt time.Time
}

// New creates a trigger. network may be nil to run without waiting for
// connectivity. A non-positive runTimeout means no timeout.
func New(runner Runner, network Connectivity, runTimeout time.Duration) *Trigger {
	return &Trigger{
		runner:     runner,
		network:    network,
		runTimeout: runTimeout,
		logger:     logging.WithComponent("prefetch-trigger"),
		wake:       make(chan struct{}, 1),
	}
}

// Enqueue requests a run. With replace false the request is dropped when a
// run is already pending or running. With replace true a running job is
// canceled and a fresh run is scheduled. It reports whether a new run was
// scheduled.
func (t *Trigger) Enqueue(replace bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !replace && (t.pending || t.running) {
		return false
	}
	if replace && t.cancelRun != nil {
		t.cancelRun()
	}
	if t.pending {
		return false
	}
	t.pending = true
	select {
	case t.wake <- struct{}{}:
	default:
	}
	return true
}

// Status returns the current state.
func (t *Trigger) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{
		Pending:     t.pending,
		Running:     t.running,
		Runs:        t.runs,
		LastOutcome: t.last,
		LastRunAt:   t.lastRunAt,
	}
}

// Serve implements suture.Service.
func (t *Trigger) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.wake:
		}

		if t.network != nil {
			if err := t.network.WaitOnline(ctx); err != nil {
				return ctx.Err()
			}
		}
		t.runOnce(ctx)
	}
}

func (t *Trigger) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	if t.runTimeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, t.runTimeout)
		defer cancelTimeout()
	}
	defer cancel()

	t.mu.Lock()
	if !t.pending {
		t.mu.Unlock()
		return
	}
	t.pending = false
	t.running = true
	t.cancelRun = cancel
	t.mu.Unlock()

	runCtx = logging.ContextWithNewCorrelationID(runCtx)
	out := t.runner.Run(runCtx)

	t.mu.Lock()
	t.running = false
	t.cancelRun = nil
	t.runs++
	t.last = &out
	t.lastRunAt = time.Now()
	t.mu.Unlock()

	metrics.RecordPrefetchRun(out.Status.String(), out.Duration,
		out.CountErrors(ranking.KindBusiness), out.CountErrors(ranking.KindProduct))
	t.logOutcome(runCtx, out)
}

func (t *Trigger) logOutcome(ctx context.Context, out ranking.Outcome) {
	logger := t.logger.With().
		Str("correlation_id", logging.CorrelationIDFromContext(ctx)).
		Str("status", out.Status.String()).
		Dur("duration", out.Duration).
		Logger()

	switch out.Status {
	case ranking.StatusSuccess:
		logger.Info().
			Int("categories", out.Categories).
			Int("business_partitions", out.BusinessPartitions).
			Int("product_partitions", out.ProductPartitions).
			Msg("Prefetch run complete")
	case ranking.StatusPartialFailure:
		logger.Warn().
			Err(out.Err()).
			Int("partition_errors", len(out.PartitionErrors)).
			Msg("Prefetch run finished with failed partitions")
	default:
		if out.Reason == "canceled" {
			logger.Info().Msg("Prefetch run canceled")
			return
		}
		logger.Warn().Str("reason", out.Reason).Msg("Prefetch run aborted")
	}
}

// String implements fmt.Stringer for suture logging.
func (t *Trigger) String() string {
	return "prefetch-trigger"
}
