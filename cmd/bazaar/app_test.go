// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bazaar/internal/config"
	"github.com/tomtom215/bazaar/internal/logging"
)

// fakeRemote serves a tiny catalog and counts category increments. While
// down every request fails with 503.
type fakeRemote struct {
	down atomic.Bool

	mu     sync.Mutex
	clicks map[string]int
}

func (f *fakeRemote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.down.Load() {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case r.URL.Path == "/categories":
		_, _ = w.Write([]byte(`[{"id":"food","name":"Food","count":3}]`))
	case r.URL.Path == "/businesses":
		_, _ = w.Write([]byte(`[{"id":"b1","name":"Bakery","category_id":"food","rating":4.5}]`))
	case r.URL.Path == "/products":
		_, _ = w.Write([]byte(`[
			{"id":"p1","business_id":"b1","name":"Bread","category":"loaves","rating":4.9},
			{"id":"p2","business_id":"b1","name":"Cake","category":"sweets","rating":4.1}
		]`))
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/increment"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/categories/"), "/increment")
		f.mu.Lock()
		f.clicks[id]++
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeRemote) clicksFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clicks[id]
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    struct {
		Tier string `json:"tier"`
	} `json:"meta"`
}

func call(t *testing.T, h http.Handler, method, target string) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v\n%s", method, target, err, rec.Body.String())
	}
	return rec.Code, env
}

func loadTestConfig(t *testing.T, remoteURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("REMOTE_BASE_URL", remoteURL)
	t.Setenv("STORE_PATH", filepath.Join(dir, "bazaar.db"))
	t.Setenv("QUEUE_PATH", filepath.Join(dir, "queue"))
	t.Setenv("QUEUE_SYNC_WRITES", "false")
	t.Setenv("PREFETCH_RUN_ON_STARTUP", "false")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func TestApp_ServesThroughOutage(t *testing.T) {
	remote := &fakeRemote{clicks: make(map[string]int)}
	srv := httptest.NewServer(remote)
	defer srv.Close()

	cfg := loadTestConfig(t, srv.URL)
	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	status, env := call(t, a.handler, http.MethodGet, "/v1/products")
	if status != http.StatusOK || env.Meta.Tier != "fresh" {
		t.Fatalf("online products: status=%d tier=%q", status, env.Meta.Tier)
	}
	// The global-top snapshot is written in the background.
	a.repo.Wait()

	remote.down.Store(true)

	status, env = call(t, a.handler, http.MethodGet, "/v1/products?refresh=true")
	if status != http.StatusOK || env.Meta.Tier != "stale_durable" {
		t.Fatalf("offline products: status=%d tier=%q", status, env.Meta.Tier)
	}

	status, _ = call(t, a.handler, http.MethodPost, "/v1/categories/food/clicks")
	if status != http.StatusAccepted {
		t.Fatalf("offline click status = %d, want 202", status)
	}
	if got := a.queue.Stats().PendingCount; got != 1 {
		t.Fatalf("pending clicks = %d, want 1", got)
	}

	remote.down.Store(false)

	status, env = call(t, a.handler, http.MethodPost, "/v1/queue/replay")
	if status != http.StatusOK {
		t.Fatalf("replay status = %d", status)
	}
	var report struct {
		Replayed int `json:"replayed"`
	}
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatal(err)
	}
	if report.Replayed != 1 || remote.clicksFor("food") != 1 {
		t.Errorf("replayed=%d remote clicks=%d, want 1 and 1", report.Replayed, remote.clicksFor("food"))
	}
	if got := a.queue.Stats().PendingCount; got != 0 {
		t.Errorf("pending clicks after replay = %d, want 0", got)
	}
}

func TestApp_ReplaysOnReconnect(t *testing.T) {
	remote := &fakeRemote{clicks: make(map[string]int)}
	remote.down.Store(true)
	srv := httptest.NewServer(remote)
	defer srv.Close()

	cfg := loadTestConfig(t, srv.URL)
	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer func() { _ = a.Close() }()

	if status, _ := call(t, a.handler, http.MethodPost, "/v1/categories/food/clicks"); status != http.StatusAccepted {
		t.Fatalf("click status = %d, want 202", status)
	}

	remote.down.Store(false)
	serveInBackground(t, a.replay, a.monitor)

	// The monitor's first probe is an offline to online transition.
	waitForClicks(t, remote, "food", 1)
}

// serveInBackground runs services until the test ends.
func serveInBackground(t *testing.T, svcs ...interface{ Serve(context.Context) error }) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, svc := range svcs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.Serve(ctx)
		}()
	}
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
}

func waitForClicks(t *testing.T, remote *fakeRemote, id string, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for remote.clicksFor(id) < want {
		if time.Now().After(deadline) {
			t.Fatalf("remote clicks for %s = %d, want %d", id, remote.clicksFor(id), want)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestApp_ReplaysAfterServerErrorOutage(t *testing.T) {
	remote := &fakeRemote{clicks: make(map[string]int)}
	srv := httptest.NewServer(remote)
	defer srv.Close()

	t.Setenv("NETWORK_INTERVAL", "50ms")
	t.Setenv("NETWORK_PROBE_TIMEOUT", "50ms")
	cfg := loadTestConfig(t, srv.URL)
	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer func() { _ = a.Close() }()

	serveInBackground(t, a.replay, a.monitor)
	waitFor(t, "monitor online", a.monitor.Online)

	// The host stays reachable but the service answers 503.
	remote.down.Store(true)
	waitFor(t, "monitor offline", func() bool { return !a.monitor.Online() })

	if status, _ := call(t, a.handler, http.MethodPost, "/v1/categories/food/clicks"); status != http.StatusAccepted {
		t.Fatalf("click status = %d, want 202", status)
	}

	remote.down.Store(false)
	waitForClicks(t, remote, "food", 1)
	waitFor(t, "queue drained", func() bool { return !a.queue.HasPending() })
}

func TestApp_ReplaysAfterRemoteSuccess(t *testing.T) {
	remote := &fakeRemote{clicks: make(map[string]int)}
	srv := httptest.NewServer(remote)
	defer srv.Close()
	// A probe target that stays up through the remote outage.
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer gateway.Close()

	t.Setenv("NETWORK_INTERVAL", "50ms")
	t.Setenv("NETWORK_PROBE_TIMEOUT", "50ms")
	t.Setenv("NETWORK_PROBE_URL", gateway.URL)
	cfg := loadTestConfig(t, srv.URL)
	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer func() { _ = a.Close() }()

	serveInBackground(t, a.replay, a.monitor)
	waitFor(t, "monitor online", a.monitor.Online)

	remote.down.Store(true)
	if status, _ := call(t, a.handler, http.MethodPost, "/v1/categories/food/clicks"); status != http.StatusAccepted {
		t.Fatalf("click status = %d, want 202", status)
	}

	// Several probe ticks pass without a reconnect.
	time.Sleep(200 * time.Millisecond)
	if !a.monitor.Online() || remote.clicksFor("food") != 0 {
		t.Fatalf("online=%v clicks=%d before the remote recovered", a.monitor.Online(), remote.clicksFor("food"))
	}

	remote.down.Store(false)
	if status, env := call(t, a.handler, http.MethodGet, "/v1/categories"); status != http.StatusOK || env.Meta.Tier != "fresh" {
		t.Fatalf("categories after recovery: status=%d tier=%q", status, env.Meta.Tier)
	}
	waitForClicks(t, remote, "food", 1)
	waitFor(t, "queue drained", func() bool { return !a.queue.HasPending() })
}

func TestNewApp_LogsEachStoreOpenOnce(t *testing.T) {
	remote := &fakeRemote{clicks: make(map[string]int)}
	srv := httptest.NewServer(remote)
	defer srv.Close()
	cfg := loadTestConfig(t, srv.URL)

	var buf bytes.Buffer
	prev := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	defer logging.SetLogger(prev)

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for _, msg := range []string{"Materialized store opened", "Offline queue opened"} {
		if n := strings.Count(buf.String(), `"message":"`+msg+`"`); n != 1 {
			t.Errorf("%q logged %d times, want 1", msg, n)
		}
	}
}

func TestQueueConfig(t *testing.T) {
	t.Parallel()
	got := queueConfig(&config.QueueConfig{
		Path:       "/tmp/q",
		SyncWrites: false,
		GCInterval: 2 * time.Minute,
	})
	if got.Path != "/tmp/q" || got.SyncWrites || got.GCInterval != 2*time.Minute {
		t.Errorf("queueConfig() = %+v", got)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
