// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

/*
Package remote is the HTTP client for the remote catalog service.

Endpoints (relative to the configured base URL):

	GET  /categories                      []Category
	GET  /businesses                      []Business
	GET  /products                        []Product
	GET  /products?ids=a,b,c              []Product
	GET  /businesses/{id}/products        []Product
	POST /categories/{id}/increment       2xx, body ignored

Error contract:
  - A JSON array (including []) is an authoritative result.
  - Transport errors, timeouts, non-2xx statuses, an open circuit breaker,
    and empty, null or malformed bodies all wrap ErrUnavailable.
  - Cancellation of the caller's context returns context.Canceled
    unwrapped so callers can tell a torn-down view from an outage.
*/
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/bazaar/internal/config"
	"github.com/tomtom215/bazaar/internal/metrics"
	"github.com/tomtom215/bazaar/internal/models"
)

// ErrUnavailable means the remote service could not produce an
// authoritative answer.
var ErrUnavailable = errors.New("remote catalog unavailable")

const (
	// maxBodySize bounds how much of a response is decoded.
	maxBodySize = 16 << 20

	// maxErrorBodySize limits how much of an error response is kept for logs.
	maxErrorBodySize = 4 * 1024

	// idsPerRequest caps ids per ListProductsByIDs request to keep URLs short.
	idsPerRequest = 50
)

// Catalog is the remote catalog service as seen by the ranking job and
// the read path.
type Catalog interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListBusinesses(ctx context.Context) ([]models.Business, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	ListProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	ListProductsByBusiness(ctx context.Context, businessID string) ([]models.Product, error)
	IncrementCategoryCount(ctx context.Context, categoryID string) error
}

// TokenSource supplies credentials from the session subsystem.
// An empty token sends no Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// StatusError is returned for non-2xx responses. It wraps ErrUnavailable.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Unwrap makes errors.Is(err, ErrUnavailable) hold.
func (e *StatusError) Unwrap() error {
	return ErrUnavailable
}

// clientError reports whether err is a 4xx other than 429: the service
// answered, it just rejected this request.
func clientError(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
}

// HTTPClient talks to the remote catalog service over HTTP.
//
// Thread Safety: safe for concurrent use.
type HTTPClient struct {
	baseURL        *url.URL
	tokens         TokenSource
	client         *http.Client
	limiter        *rate.Limiter
	maxRetries     int           // retries on HTTP 429
	retryBaseDelay time.Duration // doubled per retry
}

// NewHTTPClient creates a client from cfg. A nil tokens falls back to
// cfg.Token.
func NewHTTPClient(cfg *config.RemoteConfig, tokens TokenSource) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse remote base URL: %w", err)
	}
	if tokens == nil {
		tokens = StaticToken(cfg.Token)
	}

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &HTTPClient{
		baseURL:        base,
		tokens:         tokens,
		client:         &http.Client{Timeout: cfg.Timeout},
		limiter:        rate.NewLimiter(limit, burst),
		maxRetries:     2,
		retryBaseDelay: 500 * time.Millisecond,
	}, nil
}

// ListCategories fetches every category.
func (c *HTTPClient) ListCategories(ctx context.Context) ([]models.Category, error) {
	return getList[models.Category](ctx, c, "list_categories", "/categories", nil)
}

// ListBusinesses fetches every business.
func (c *HTTPClient) ListBusinesses(ctx context.Context) ([]models.Business, error) {
	return getList[models.Business](ctx, c, "list_businesses", "/businesses", nil)
}

// ListProducts fetches the catalog-wide product list.
func (c *HTTPClient) ListProducts(ctx context.Context) ([]models.Product, error) {
	return getList[models.Product](ctx, c, "list_products", "/products", nil)
}

// ListProductsByIDs fetches full product records for ids. Blank and
// repeated ids are dropped; large id sets are split across requests.
func (c *HTTPClient) ListProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	ids = uniqueIDs(ids)
	out := make([]models.Product, 0, len(ids))
	for start := 0; start < len(ids); start += idsPerRequest {
		end := min(start+idsPerRequest, len(ids))
		q := url.Values{}
		q.Set("ids", strings.Join(ids[start:end], ","))

		batch, err := getList[models.Product](ctx, c, "list_products_by_ids", "/products", q)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

// ListProductsByBusiness fetches the products of one business.
func (c *HTTPClient) ListProductsByBusiness(ctx context.Context, businessID string) ([]models.Product, error) {
	path := "/businesses/" + url.PathEscape(businessID) + "/products"
	return getList[models.Product](ctx, c, "list_products_by_business", path, nil)
}

// IncrementCategoryCount records one category selection.
func (c *HTTPClient) IncrementCategoryCount(ctx context.Context, categoryID string) error {
	path := "/categories/" + url.PathEscape(categoryID) + "/increment"
	const endpoint = "increment_category_count"

	start := time.Now()
	resp, err := c.do(ctx, endpoint, http.MethodPost, path, nil)
	if err != nil {
		metrics.RecordRemoteRequest(endpoint, resultLabel(err), time.Since(start))
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize)) //nolint:errcheck // drain for keep-alive

	metrics.RecordRemoteRequest(endpoint, "success", time.Since(start))
	return nil
}

// Ping issues a HEAD against the base URL. A 5xx answer means the service
// is up but not serving, and counts as unreachable like a transport error.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL.String(), http.NoBody)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return c.transportError(ctx, "ping", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return &StatusError{Endpoint: "ping", StatusCode: resp.StatusCode}
	}
	return nil
}

func getList[T any](ctx context.Context, c *HTTPClient, endpoint, path string, query url.Values) ([]T, error) {
	start := time.Now()
	items, err := fetchList[T](ctx, c, endpoint, path, query)
	metrics.RecordRemoteRequest(endpoint, resultLabel(err), time.Since(start))
	return items, err
}

func fetchList[T any](ctx context.Context, c *HTTPClient, endpoint, path string, query url.Values) ([]T, error) {
	resp, err := c.do(ctx, endpoint, http.MethodGet, path, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.transportError(ctx, endpoint, err)
	}
	return decodeList[T](endpoint, body)
}

// decodeList separates an authoritative (possibly empty) array from a
// response that only looks like one.
func decodeList[T any](endpoint string, body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0:
		return nil, fmt.Errorf("%w: %s: empty body", ErrUnavailable, endpoint)
	case bytes.Equal(trimmed, []byte("null")):
		return nil, fmt.Errorf("%w: %s: null body", ErrUnavailable, endpoint)
	case trimmed[0] != '[':
		return nil, fmt.Errorf("%w: %s: body is not a JSON array", ErrUnavailable, endpoint)
	}

	items := make([]T, 0)
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: decode: %v", ErrUnavailable, endpoint, err)
	}
	return items, nil
}

// do sends one request, waiting on the rate limiter first and retrying
// HTTP 429 with exponential backoff. A non-nil response always has a 2xx
// status.
func (c *HTTPClient) do(ctx context.Context, endpoint, method, path string, query url.Values) (*http.Response, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, c.transportError(ctx, endpoint, err)
		}
		return nil, fmt.Errorf("%w: %s: credentials: %v", ErrUnavailable, endpoint, err)
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.transportError(ctx, endpoint, err)
		}

		req, err := http.NewRequestWithContext(ctx, method, u.String(), http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("build %s request: %w", endpoint, err)
		}
		req.Header.Set("Accept", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, c.transportError(ctx, endpoint, err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		statusErr := &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       readBodyForError(resp.Body),
		}
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusTooManyRequests || attempt >= c.maxRetries {
			return nil, statusErr
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, c.transportError(ctx, endpoint, ctx.Err())
		}
	}
}

// transportError keeps caller cancellation distinguishable from an outage.
// A caller deadline is an outage: the remote did not answer in time.
func (c *HTTPClient) transportError(ctx context.Context, endpoint string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return context.Canceled
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, endpoint, err)
}

func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	return strings.TrimSpace(string(body))
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unavailable"
	}
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
