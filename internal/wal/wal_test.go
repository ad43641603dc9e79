// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package wal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// Test helpers

func createTestConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Path:             filepath.Join(t.TempDir(), "queue"),
		SyncWrites:       false, // Faster tests without fsync
		GCInterval:       time.Minute,
		GCRatio:          0.5,
		CloseTimeout:     5 * time.Second,
		MemTableSize:     16 * 1024 * 1024, // BadgerDB minimum for tests
		ValueLogFileSize: 16 * 1024 * 1024,
		NumCompactors:    2,
	}
}

func setupQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := OpenForTesting(createTestConfig(t))
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func targets(intents []Intent) []string {
	out := make([]string, len(intents))
	for i, in := range intents {
		out[i] = in.TargetID
	}
	return out
}

func TestQueue_RoundTripOrder(t *testing.T) {
	t.Parallel()

	q := setupQueue(t)
	ctx := context.Background()

	for _, id := range []string{"x", "y"} {
		if err := q.Enqueue(ctx, id); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	got, err := q.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if fmt.Sprint(targets(got)) != "[x y]" {
		t.Errorf("drained %v, want [x y]", targets(got))
	}
	for _, in := range got {
		if in.ID == "" || in.EnqueuedAtMillis == 0 || in.Attempts != 0 {
			t.Errorf("intent %+v missing metadata", in)
		}
	}

	again, err := q.Drain(ctx)
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second drain = %v, want empty", targets(again))
	}
}

func TestQueue_OrderBeyondSequenceBandwidth(t *testing.T) {
	t.Parallel()

	cfg := createTestConfig(t)
	cfg.SequenceBandwidth = 3
	q, err := OpenForTesting(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer q.Close()

	ctx := context.Background()
	var want []string
	for i := 0; i < 300; i++ {
		id := fmt.Sprintf("cat-%03d", i)
		want = append(want, id)
		if err := q.Enqueue(ctx, id); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	got, err := q.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if fmt.Sprint(targets(got)) != fmt.Sprint(want) {
		t.Errorf("drain order diverged from insertion order")
	}
}

func TestQueue_ConcurrentSameTargetNotCoalesced(t *testing.T) {
	t.Parallel()

	q := setupQueue(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- q.Enqueue(ctx, "food")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	got, err := q.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if fmt.Sprint(targets(got)) != "[food food]" {
		t.Errorf("drained %v, want [food food]", targets(got))
	}
	if got[0].ID == got[1].ID {
		t.Error("concurrent intents share an id")
	}
}

func TestQueue_DrainConcurrentWithEnqueue(t *testing.T) {
	t.Parallel()

	q := setupQueue(t)
	ctx := context.Background()

	const writers, perWriter = 4, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if err := q.Enqueue(ctx, fmt.Sprintf("w%d", w)); err != nil {
					t.Errorf("enqueue: %v", err)
					return
				}
			}
		}(w)
	}

	seen := make(map[string]bool)
	total := 0
	collect := func() {
		got, err := q.Drain(ctx)
		if err != nil {
			t.Errorf("drain: %v", err)
			return
		}
		for _, in := range got {
			if seen[in.ID] {
				t.Errorf("intent %s drained twice", in.ID)
			}
			seen[in.ID] = true
		}
		total += len(got)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
loop:
	for {
		select {
		case <-done:
			break loop
		default:
			collect()
		}
	}
	collect()

	if total != writers*perWriter {
		t.Errorf("drained %d intents, want %d", total, writers*perWriter)
	}
}

func TestQueue_SurvivesReopen(t *testing.T) {
	t.Parallel()

	cfg := createTestConfig(t)
	ctx := context.Background()

	q, err := OpenForTesting(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := q.Enqueue(ctx, "food"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	q, err = OpenForTesting(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer q.Close()

	if err := q.Enqueue(ctx, "retail"); err != nil {
		t.Fatalf("enqueue after reopen: %v", err)
	}
	got, err := q.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if fmt.Sprint(targets(got)) != "[food retail]" {
		t.Errorf("drained %v, want [food retail]", targets(got))
	}
}

func TestQueue_Requeue(t *testing.T) {
	t.Parallel()

	q := setupQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "food"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	first, err := q.Drain(ctx)
	if err != nil || len(first) != 1 {
		t.Fatalf("drain = %v, %v", first, err)
	}

	if err := q.Enqueue(ctx, "retail"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Requeue(ctx, first[0]); err != nil {
		t.Fatalf("requeue: %v", err)
	}

	got, err := q.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if fmt.Sprint(targets(got)) != "[retail food]" {
		t.Fatalf("drained %v, want [retail food]", targets(got))
	}
	requeued := got[1]
	if requeued.ID != first[0].ID || requeued.Attempts != 1 || requeued.EnqueuedAtMillis != first[0].EnqueuedAtMillis {
		t.Errorf("requeued = %+v, want same id/time with attempts 1", requeued)
	}
	if s := q.Stats(); s.TotalRequeued != 1 || s.TotalEnqueued != 2 || s.TotalDrained != 3 {
		t.Errorf("stats = %+v", s)
	}
}

func TestQueue_RestoreKeepsAttempts(t *testing.T) {
	t.Parallel()

	q := setupQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "food"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	drained, err := q.Drain(ctx)
	if err != nil || len(drained) != 1 {
		t.Fatalf("drain = %v, %v", drained, err)
	}
	if q.HasPending() {
		t.Error("HasPending() after drain = true")
	}
	in := drained[0]
	in.Attempts = 1

	for round := 0; round < 3; round++ {
		if err := q.Restore(ctx, in); err != nil {
			t.Fatalf("restore %d: %v", round, err)
		}
		if !q.HasPending() {
			t.Fatalf("round %d: HasPending() after restore = false", round)
		}
		got, err := q.Drain(ctx)
		if err != nil || len(got) != 1 {
			t.Fatalf("drain %d = %v, %v", round, got, err)
		}
		if got[0].ID != in.ID || got[0].Attempts != 1 {
			t.Fatalf("round %d: restored = %+v, want id %s with attempts 1", round, got[0], in.ID)
		}
	}

	if err := q.Restore(ctx, Intent{}); !errors.Is(err, ErrEmptyTargetID) {
		t.Errorf("blank restore err = %v, want ErrEmptyTargetID", err)
	}
}

func TestQueue_Errors(t *testing.T) {
	t.Parallel()

	q := setupQueue(t)

	if err := q.Enqueue(context.Background(), "  "); !errors.Is(err, ErrEmptyTargetID) {
		t.Errorf("blank enqueue err = %v, want ErrEmptyTargetID", err)
	}
	if err := q.Requeue(context.Background(), Intent{}); !errors.Is(err, ErrEmptyTargetID) {
		t.Errorf("blank requeue err = %v, want ErrEmptyTargetID", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Enqueue(ctx, "food"); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled enqueue err = %v, want context.Canceled", err)
	}
	if n, _ := q.Len(); n != 0 {
		t.Errorf("len = %d after rejected enqueues", n)
	}
}

func TestQueue_LenAndStats(t *testing.T) {
	t.Parallel()

	q := setupQueue(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := q.Enqueue(ctx, "food"); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if n, err := q.Len(); err != nil || n != 3 {
		t.Errorf("len = %d, %v; want 3", n, err)
	}

	stats := q.Stats()
	if stats.PendingCount != 3 || stats.TotalEnqueued != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if !stats.LastDrain.IsZero() {
		t.Error("LastDrain set before any drain")
	}

	if _, err := q.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if stats = q.Stats(); stats.PendingCount != 0 || stats.LastDrain.IsZero() {
		t.Errorf("stats after drain = %+v", stats)
	}
}

func TestQueue_Close(t *testing.T) {
	t.Parallel()

	q, err := OpenForTesting(createTestConfig(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	ctx := context.Background()
	if err := q.Enqueue(ctx, "food"); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("enqueue err = %v, want ErrQueueClosed", err)
	}
	if _, err := q.Drain(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("drain err = %v, want ErrQueueClosed", err)
	}
	if _, err := q.Len(); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("len err = %v, want ErrQueueClosed", err)
	}
	if err := q.RunGC(); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("gc err = %v, want ErrQueueClosed", err)
	}
	if s := q.Stats(); s != (Stats{}) {
		t.Errorf("stats on closed queue = %+v", s)
	}
}

func TestQueue_RunGC(t *testing.T) {
	t.Parallel()

	q := setupQueue(t)
	if err := q.RunGC(); err != nil {
		t.Errorf("gc on fresh queue: %v", err)
	}
}

func TestGCService_StopsOnCancel(t *testing.T) {
	t.Parallel()

	q := setupQueue(t)
	svc := NewGCService(q, 10*time.Millisecond)
	if svc.String() != "offline-queue-gc" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty path", func(c *Config) { c.Path = "" }, "Path"},
		{"short gc interval", func(c *Config) { c.GCInterval = time.Second }, "GCInterval"},
		{"gc ratio too high", func(c *Config) { c.GCRatio = 1 }, "GCRatio"},
		{"small memtable", func(c *Config) { c.MemTableSize = 1024 }, "MemTableSize"},
		{"small vlog", func(c *Config) { c.ValueLogFileSize = 1024 }, "ValueLogFileSize"},
		{"one compactor", func(c *Config) { c.NumCompactors = 1 }, "NumCompactors"},
		{"zero bandwidth", func(c *Config) { c.SequenceBandwidth = 0 }, "SequenceBandwidth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Field != tt.field {
				t.Errorf("Validate() = %v, want ConfigError on %s", err, tt.field)
			}
		})
	}
}
