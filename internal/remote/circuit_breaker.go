// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package remote

import (
	"context"
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/bazaar/internal/config"
	"github.com/tomtom215/bazaar/internal/logging"
	"github.com/tomtom215/bazaar/internal/metrics"
	"github.com/tomtom215/bazaar/internal/models"
)

// CircuitBreakerClient wraps a Catalog with the circuit breaker pattern
// so an unreachable remote service fails fast instead of stalling every
// read for the full request timeout.
//
// Caller cancellation and 4xx responses do not count as failures.
type CircuitBreakerClient struct {
	client Catalog
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewCircuitBreakerClient wraps client with a breaker configured by cfg.
// The breaker opens after cfg.ConsecutiveFailures failures in a row.
func NewCircuitBreakerClient(client Catalog, cfg *config.BreakerConfig) *CircuitBreakerClient {
	cbName := "remote-catalog"

	// Initialize circuit breaker state metrics
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)

	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 1
	}

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= threshold
			if shouldTrip {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || clientError(err)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()

			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &CircuitBreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// State returns the current breaker state.
func (cbc *CircuitBreakerClient) State() gobreaker.State {
	return cbc.cb.State()
}

// execute wraps a remote call with circuit breaker protection.
// A rejected call wraps ErrUnavailable.
func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(fn)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			logging.Debug().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}

		metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
		counts := cbc.cb.Counts()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(float64(counts.ConsecutiveFailures))
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(0)

	return result, nil
}

// castResult type-casts the circuit breaker result.
func castResult[T any](result interface{}, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.([]T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ListCategories fetches every category with circuit breaker protection.
func (cbc *CircuitBreakerClient) ListCategories(ctx context.Context) ([]models.Category, error) {
	return castResult[models.Category](cbc.execute(func() (interface{}, error) {
		return cbc.client.ListCategories(ctx)
	}))
}

// ListBusinesses fetches every business with circuit breaker protection.
func (cbc *CircuitBreakerClient) ListBusinesses(ctx context.Context) ([]models.Business, error) {
	return castResult[models.Business](cbc.execute(func() (interface{}, error) {
		return cbc.client.ListBusinesses(ctx)
	}))
}

// ListProducts fetches the catalog-wide product list with circuit breaker protection.
func (cbc *CircuitBreakerClient) ListProducts(ctx context.Context) ([]models.Product, error) {
	return castResult[models.Product](cbc.execute(func() (interface{}, error) {
		return cbc.client.ListProducts(ctx)
	}))
}

// ListProductsByIDs fetches products by id with circuit breaker protection.
func (cbc *CircuitBreakerClient) ListProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	return castResult[models.Product](cbc.execute(func() (interface{}, error) {
		return cbc.client.ListProductsByIDs(ctx, ids)
	}))
}

// ListProductsByBusiness fetches one business's products with circuit breaker protection.
func (cbc *CircuitBreakerClient) ListProductsByBusiness(ctx context.Context, businessID string) ([]models.Product, error) {
	return castResult[models.Product](cbc.execute(func() (interface{}, error) {
		return cbc.client.ListProductsByBusiness(ctx, businessID)
	}))
}

// IncrementCategoryCount records one category selection with circuit breaker protection.
func (cbc *CircuitBreakerClient) IncrementCategoryCount(ctx context.Context, categoryID string) error {
	_, err := cbc.execute(func() (interface{}, error) {
		return nil, cbc.client.IncrementCategoryCount(ctx, categoryID)
	})
	return err
}
