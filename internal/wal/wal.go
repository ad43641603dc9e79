// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package wal

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/bazaar/internal/logging"
)

// Intent is one pending write action: a single increment of TargetID.
type Intent struct {
	// ID identifies the intent across requeues.
	ID string `json:"id"`

	// TargetID is the category whose counter should be incremented.
	TargetID string `json:"target_id"`

	// EnqueuedAtMillis is when the intent was first appended.
	EnqueuedAtMillis int64 `json:"enqueued_at"`

	// Attempts is the number of failed replays so far.
	Attempts int `json:"attempts"`
}

// EnqueuedAt returns EnqueuedAtMillis as a UTC time.
func (i Intent) EnqueuedAt() time.Time {
	return time.UnixMilli(i.EnqueuedAtMillis).UTC()
}

// Stats contains queue metrics for monitoring.
type Stats struct {
	// PendingCount is the number of intents waiting for replay.
	PendingCount int64

	TotalEnqueued int64
	TotalDrained  int64
	TotalRequeued int64

	// LastDrain is the time of the last successful drain.
	LastDrain time.Time

	// DBSizeBytes is the estimated database size.
	DBSizeBytes int64
}

// Queue is the BadgerDB-backed offline write queue.
type Queue struct {
	db     *badger.DB
	seq    *badger.Sequence
	config Config

	totalEnqueued atomic.Int64
	totalDrained  atomic.Int64
	totalRequeued atomic.Int64

	// drainMu serializes drains.
	drainMu sync.Mutex

	mu     sync.RWMutex
	closed bool

	// lastDrain is unix nanoseconds of the last successful drain.
	lastDrain atomic.Int64

	now func() time.Time
}

const (
	prefixIntent = "intent:"
	keySequence  = "meta:intent_seq"
)

// Errors
var (
	// ErrQueueClosed is returned when the queue is closed.
	ErrQueueClosed = errors.New("offline queue is closed")

	// ErrEmptyTargetID is returned when a blank target id is enqueued.
	ErrEmptyTargetID = errors.New("target ID cannot be empty")
)

// Open opens (or creates) the queue at cfg.Path.
func Open(cfg Config) (*Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid queue config: %w", err)
	}
	return open(cfg)
}

// OpenForTesting opens a queue without configuration validation so
// tests can use short intervals.
func OpenForTesting(cfg Config) (*Queue, error) {
	if cfg.NumCompactors < 2 {
		cfg.NumCompactors = 2
	}
	if cfg.MemTableSize == 0 {
		cfg.MemTableSize = 16 * 1024 * 1024
	}
	if cfg.ValueLogFileSize == 0 {
		cfg.ValueLogFileSize = 16 * 1024 * 1024
	}
	if cfg.GCRatio == 0 {
		cfg.GCRatio = 0.5
	}
	if cfg.SequenceBandwidth == 0 {
		cfg.SequenceBandwidth = 10
	}
	return open(cfg)
}

func open(cfg Config) (*Queue, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.MemTableSize = cfg.MemTableSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.NumCompactors = cfg.NumCompactors
	if cfg.Compression {
		opts.Compression = options.Snappy
	}

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	seq, err := db.GetSequence([]byte(keySequence), cfg.SequenceBandwidth)
	if err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("lease intent sequence: %w", err)
	}

	q := &Queue{
		db:     db,
		seq:    seq,
		config: cfg,
		now:    time.Now,
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("Offline queue opened")
	return q, nil
}

// Enqueue durably appends one increment intent for targetID.
func (q *Queue) Enqueue(ctx context.Context, targetID string) error {
	if strings.TrimSpace(targetID) == "" {
		return ErrEmptyTargetID
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	in := Intent{
		ID:               uuid.New().String(),
		TargetID:         targetID,
		EnqueuedAtMillis: q.now().UTC().UnixMilli(),
	}
	if err := q.append(in); err != nil {
		return err
	}

	q.totalEnqueued.Add(1)
	RecordEnqueue()

	logging.Debug().
		Str("intent_id", in.ID).
		Str("target_id", targetID).
		Msg("Intent queued for replay")
	return nil
}

// Requeue re-appends a drained intent whose replay failed, with its
// attempt count incremented. The intent goes to the tail of the queue.
func (q *Queue) Requeue(ctx context.Context, in Intent) error {
	return q.requeue(ctx, in, true)
}

// Restore re-appends a drained intent that was never tried, keeping its
// attempt count. The intent goes to the tail of the queue.
func (q *Queue) Restore(ctx context.Context, in Intent) error {
	return q.requeue(ctx, in, false)
}

func (q *Queue) requeue(ctx context.Context, in Intent, failed bool) error {
	if strings.TrimSpace(in.TargetID) == "" {
		return ErrEmptyTargetID
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if failed {
		in.Attempts++
	}
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.EnqueuedAtMillis == 0 {
		in.EnqueuedAtMillis = q.now().UTC().UnixMilli()
	}
	if err := q.append(in); err != nil {
		return err
	}

	q.totalRequeued.Add(1)
	RecordRequeue()
	return nil
}

func (q *Queue) append(in Intent) error {
	start := time.Now()
	defer func() {
		RecordWriteLatency(time.Since(start).Seconds())
	}()

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	n, err := q.seq.Next()
	if err != nil {
		RecordWriteFailure()
		return fmt.Errorf("next intent sequence: %w", err)
	}

	data, err := json.Marshal(&in)
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}

	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(intentKey(n), data)
	})
	if err != nil {
		RecordWriteFailure()
		return fmt.Errorf("write intent: %w", err)
	}
	return nil
}

// Drain atomically removes and returns every pending intent in
// insertion order. A second Drain with no Enqueue in between returns
// an empty slice.
//
// If the pending set is larger than a single BadgerDB transaction can
// delete, Drain returns the prefix it could remove and the rest stays
// queued for the next call.
func (q *Queue) Drain(ctx context.Context) ([]Intent, error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return nil, ErrQueueClosed
	}

	var intents []Intent
	err := q.db.Update(func(txn *badger.Txn) error {
		records, err := scanIntents(ctx, txn)
		if err != nil {
			return err
		}

		intents = make([]Intent, 0, len(records))
		for _, r := range records {
			if err := txn.Delete(r.key); err != nil {
				if errors.Is(err, badger.ErrTxnTooBig) {
					logging.Warn().
						Int("drained", len(intents)).
						Int("remaining", len(records)-len(intents)).
						Msg("Drain hit transaction limit, rest stays queued")
					return nil
				}
				return fmt.Errorf("delete intent: %w", err)
			}
			if r.ok {
				intents = append(intents, r.intent)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drain intents: %w", err)
	}

	q.totalDrained.Add(int64(len(intents)))
	q.lastDrain.Store(q.now().UnixNano())
	RecordDrained(len(intents))

	return intents, nil
}

type record struct {
	key    []byte
	intent Intent
	ok     bool
}

// scanIntents reads every intent key in order. Records that fail to
// decode are returned with ok=false so the drain still deletes them.
func scanIntents(ctx context.Context, txn *badger.Txn) ([]record, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Prefix = []byte(prefixIntent)
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []record
	for it.Rewind(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := it.Item()
		r := record{key: item.KeyCopy(nil)}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &r.intent)
		}); err != nil {
			logging.Warn().Err(err).Str("key", fmt.Sprintf("%x", r.key)).Msg("Dropping malformed intent")
		} else {
			r.ok = true
		}
		out = append(out, r)
	}
	return out, nil
}

// Len returns the number of pending intents.
func (q *Queue) Len() (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return 0, ErrQueueClosed
	}

	count, err := q.countPending()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// HasPending reports whether at least one intent is queued. It stops at
// the first key, so it is cheap enough for hot paths.
func (q *Queue) HasPending() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}

	var found bool
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixIntent)
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Rewind()
		found = it.Valid()
		return nil
	})
	if err != nil {
		logging.Warn().Err(err).Msg("Offline queue pending check failed")
		return false
	}
	return found
}

func (q *Queue) countPending() (int64, error) {
	var count int64
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixIntent)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count intents: %w", err)
	}
	return count, nil
}

// Stats returns current queue statistics and refreshes the gauges.
func (q *Queue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return Stats{}
	}

	pending, err := q.countPending()
	if err != nil {
		logging.Warn().Err(err).Msg("Offline queue stats failed to count intents")
	}

	lsm, vlog := q.db.Size()
	dbSize := lsm + vlog

	UpdatePendingIntents(pending)
	UpdateDBSize(dbSize)

	var lastDrain time.Time
	if ns := q.lastDrain.Load(); ns > 0 {
		lastDrain = time.Unix(0, ns)
	}

	return Stats{
		PendingCount:  pending,
		TotalEnqueued: q.totalEnqueued.Load(),
		TotalDrained:  q.totalDrained.Load(),
		TotalRequeued: q.totalRequeued.Load(),
		LastDrain:     lastDrain,
		DBSizeBytes:   dbSize,
	}
}

// RunGC triggers BadgerDB value log garbage collection until nothing is
// left to rewrite.
func (q *Queue) RunGC() error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	start := time.Now()
	defer func() {
		RecordGCLatency(time.Since(start).Seconds())
		RecordGCRun()
	}()

	for {
		err := q.db.RunValueLogGC(q.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close releases the sequence lease and closes BadgerDB, giving up after
// CloseTimeout.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	timeout := q.config.CloseTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	q.mu.Unlock()

	if err := q.seq.Release(); err != nil {
		logging.Warn().Err(err).Msg("Failed to release intent sequence")
	}

	done := make(chan error, 1)
	go func() {
		done <- q.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Offline queue closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}

// Config returns the queue configuration.
func (q *Queue) Config() Config {
	return q.config
}

func intentKey(n uint64) []byte {
	key := make([]byte, len(prefixIntent)+8)
	copy(key, prefixIntent)
	binary.BigEndian.PutUint64(key[len(prefixIntent):], n)
	return key
}
