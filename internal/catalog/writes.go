// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/bazaar/internal/logging"
	"github.com/tomtom215/bazaar/internal/wal"
)

// ClickCategory records one selection of a category. When the remote
// increment fails the click is queued for replay and ClickQueued is
// returned with a nil error.
func (r *Repository) ClickCategory(ctx context.Context, categoryID string) (ClickResult, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return ClickSent, wal.ErrEmptyTargetID
	}

	err := r.remote.IncrementCategoryCount(ctx, categoryID)
	if err == nil {
		r.remoteSucceeded()
		return ClickSent, nil
	}
	if canceled(ctx, err) {
		return ClickSent, context.Canceled
	}

	if qerr := r.queue.Enqueue(context.WithoutCancel(ctx), categoryID); qerr != nil {
		return ClickSent, fmt.Errorf("queue click for %q: %w", categoryID, qerr)
	}
	logging.Ctx(ctx).Debug().
		Err(err).
		Str("category_id", categoryID).
		Msg("Category click queued for replay")
	return ClickQueued, nil
}

// ReplayPending drains the offline queue and replays every intent as one
// increment, grouped by category. A failed intent is requeued while it has
// attempts left and dropped otherwise. Once ctx is done the intent in
// flight and all untried intents are requeued and ctx's error is returned.
func (r *Repository) ReplayPending(ctx context.Context) (ReplayReport, error) {
	r.replayMu.Lock()
	defer r.replayMu.Unlock()

	var report ReplayReport
	intents, err := r.queue.Drain(ctx)
	if err != nil {
		return report, fmt.Errorf("drain offline queue: %w", err)
	}
	report.Drained = len(intents)
	if len(intents) == 0 {
		return report, nil
	}

	logger := logging.Ctx(ctx).With().Str("component", "catalog").Logger()
	keep := context.WithoutCancel(ctx)

	var stopped error
	for _, group := range groupByTarget(intents) {
		for _, in := range group {
			if stopped == nil {
				err := r.remote.IncrementCategoryCount(ctx, in.TargetID)
				if err == nil {
					report.Replayed++
					continue
				}
				if stop := replayStopped(ctx, err); stop != nil {
					stopped = stop
				} else if in.Attempts+1 >= r.opts.MaxReplayAttempts {
					report.Dropped++
					logger.Warn().
						Err(err).
						Str("intent_id", in.ID).
						Str("category_id", in.TargetID).
						Int("attempts", in.Attempts+1).
						Msg("Dropping category click after failed replay")
					continue
				}
			}

			requeue := r.queue.Requeue
			if stopped != nil {
				requeue = r.queue.Restore
			}
			if err := requeue(keep, in); err != nil {
				report.Dropped++
				logger.Error().Err(err).Str("intent_id", in.ID).Msg("Requeue failed, click lost")
				continue
			}
			report.Requeued++
		}
	}

	logger.Info().
		Int("drained", report.Drained).
		Int("replayed", report.Replayed).
		Int("requeued", report.Requeued).
		Int("dropped", report.Dropped).
		Msg("Offline queue replayed")

	if stopped != nil {
		return report, stopped
	}
	return report, nil
}

// replayStopped reports why a replay must stop, or nil to keep going. An
// expired replay deadline stops the replay and is not a failed attempt.
func replayStopped(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return nil
}

// groupByTarget groups intents by target in first-seen order. Every
// occurrence is kept.
func groupByTarget(intents []wal.Intent) [][]wal.Intent {
	index := make(map[string]int)
	var groups [][]wal.Intent
	for _, in := range intents {
		i, ok := index[in.TargetID]
		if !ok {
			i = len(groups)
			index[in.TargetID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], in)
	}
	return groups
}
