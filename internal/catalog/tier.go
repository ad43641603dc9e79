// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package catalog

import "errors"

// ErrUnavailable is returned when every data tier came up empty.
var ErrUnavailable = errors.New("catalog: no data available")

// Tier is the terminal state of a read.
type Tier int

const (
	// TierFresh means the data came from the remote service in this call.
	TierFresh Tier = iota

	// TierFreshMemory means a memory cache was still within its TTL and
	// the remote service was not called.
	TierFreshMemory

	// TierStaleDurable means the remote call failed and the materialized
	// store answered.
	TierStaleDurable

	// TierStaleMemory means the remote call failed, the store was empty
	// and an expired memory cache answered.
	TierStaleMemory

	// TierUnavailable means nothing answered. The read returns ErrUnavailable.
	TierUnavailable

	// TierCanceled means the caller went away before the remote call
	// finished. No fallback was attempted.
	TierCanceled
)

func (t Tier) String() string {
	switch t {
	case TierFresh:
		return "fresh"
	case TierFreshMemory:
		return "fresh_memory"
	case TierStaleDurable:
		return "stale_durable"
	case TierStaleMemory:
		return "stale_memory"
	case TierUnavailable:
		return "unavailable"
	case TierCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Stale reports whether the data may be older than the remote state.
func (t Tier) Stale() bool {
	return t == TierStaleDurable || t == TierStaleMemory
}

// Result is the outcome of a read use case.
type Result[T any] struct {
	Items []T
	Tier  Tier
}

// ReadOptions tune a single read.
type ReadOptions struct {
	// ForceRefresh skips the fresh memory tier and always calls the
	// remote service first.
	ForceRefresh bool
}

// ClickResult tells how a category click was recorded.
type ClickResult int

const (
	// ClickSent means the remote counter was incremented.
	ClickSent ClickResult = iota

	// ClickQueued means the increment was stored for replay.
	ClickQueued
)

func (c ClickResult) String() string {
	if c == ClickQueued {
		return "queued"
	}
	return "sent"
}

// ReplayReport summarizes one replay of the offline queue.
type ReplayReport struct {
	Drained  int `json:"drained"`
	Replayed int `json:"replayed"`
	Requeued int `json:"requeued"`
	Dropped  int `json:"dropped"`
}
