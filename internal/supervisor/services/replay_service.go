// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package services

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/bazaar/internal/catalog"
	"github.com/tomtom215/bazaar/internal/logging"
)

// Replayer drains and replays the offline write queue.
type Replayer interface {
	ReplayPending(ctx context.Context) (catalog.ReplayReport, error)
}

// ReplayService replays queued category clicks each time it is notified.
type ReplayService struct {
	replayer Replayer
	timeout  time.Duration
	wake     chan struct{}
	name     string
}

// NewReplayService creates the service. A non-positive timeout means a
// replay runs until the service stops.
func NewReplayService(replayer Replayer, timeout time.Duration) *ReplayService {
	return &ReplayService{
		replayer: replayer,
		timeout:  timeout,
		wake:     make(chan struct{}, 1),
		name:     "queue-replay",
	}
}

// Notify requests a replay. It never blocks.
func (s *ReplayService) Notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Serve runs replays until ctx is canceled. Replay errors are logged and
// never end the service.
func (s *ReplayService) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
			s.replayOnce(ctx)
		}
	}
}

func (s *ReplayService) replayOnce(ctx context.Context) {
	ctx = logging.ContextWithOperation(logging.ContextWithNewCorrelationID(ctx), "replay")
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	report, err := s.replayer.ReplayPending(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logging.Ctx(ctx).Info().Int("requeued", report.Requeued).Msg("Queue replay interrupted")
	default:
		logging.Ctx(ctx).Error().Err(err).Msg("Queue replay failed")
	}
}

func (s *ReplayService) String() string {
	return s.name
}
