// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

// Package cache provides the bounded in-memory TTL caches that sit in front
// of the remote catalog service.
//
// A Store holds a whole result set (all products, all businesses, the
// products of one business) under a single freshness timestamp. Entries are
// evicted strictly by LRU access recency once capacity is reached; freshness
// is per store, not per entry, so a read either gets the full set or a miss.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/tomtom215/bazaar/internal/metrics"
)

// DefaultCapacity is used when a Store is created with a non-positive capacity.
const DefaultCapacity = 100

// Names of the stores owned by the composition root.
const (
	AllProducts        = "all-products"
	Businesses         = "businesses"
	ProductsByBusiness = "products-by-business"
)

type entry[V any] struct {
	seq   uint64
	value V
}

// Option configures a Store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source. Tests use it to move freshness around.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Stats is a point-in-time snapshot of a Store.
type Stats struct {
	Name      string    `json:"name"`
	Len       int       `json:"len"`
	Capacity  int       `json:"capacity"`
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Evictions int64     `json:"evictions"`
	FreshAt   time.Time `json:"fresh_at"`
}

// Store is a bounded LRU keyed by K holding values V with one freshness
// timestamp for the whole set. All operations are total and safe for
// concurrent use; a single coarse mutex guards every operation.
type Store[K comparable, V any] struct {
	name     string
	capacity int
	keyOf    func(V) K
	now      func() time.Time

	mu      sync.Mutex
	lru     *simplelru.LRU[K, entry[V]]
	freshAt time.Time // zero means unset
	seq     uint64
	purging bool
	hits    int64
	misses  int64
	evicted int64
}

// New creates a Store named name holding at most capacity entries. keyOf
// extracts the key of a value; values whose key is the zero K are ignored.
func New[K comparable, V any](name string, capacity int, keyOf func(V) K, opts ...Option) *Store[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store[K, V]{
		name:     name,
		capacity: capacity,
		keyOf:    keyOf,
		now:      o.now,
	}
	// NewLRU only fails for a non-positive size.
	s.lru, _ = simplelru.NewLRU[K, entry[V]](capacity, s.onEvict) //nolint:errcheck // capacity > 0
	return s
}

// onEvict runs with s.mu held (simplelru calls it from Add/Purge).
func (s *Store[K, V]) onEvict(_ K, _ entry[V]) {
	if s.purging {
		return
	}
	s.evicted++
	metrics.CacheEvictions.WithLabelValues(s.name).Inc()
}

// Name returns the store name used in logs and metrics.
func (s *Store[K, V]) Name() string {
	return s.name
}

// PutAll replaces the whole contents. An empty input clears the store and
// resets freshness; otherwise freshness becomes now. A set larger than the
// capacity keeps its most recent entries for stale reads but is never
// fresh, since GetAllIfFresh would return a truncated set.
func (s *Store[K, V]) PutAll(items []V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked()
	evictedBefore := s.evicted
	for _, item := range items {
		s.addLocked(item)
	}
	if s.lru.Len() > 0 && s.evicted == evictedBefore {
		s.freshAt = s.now()
	}
	metrics.CacheEntries.WithLabelValues(s.name).Set(float64(s.lru.Len()))
}

// Put upserts one item. Freshness is set only if it was unset.
func (s *Store[K, V]) Put(item V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.addLocked(item) {
		return
	}
	if s.freshAt.IsZero() {
		s.freshAt = s.now()
	}
	metrics.CacheEntries.WithLabelValues(s.name).Set(float64(s.lru.Len()))
}

// addLocked inserts or updates item keeping its original position.
func (s *Store[K, V]) addLocked(item V) bool {
	var zero K
	key := s.keyOf(item)
	if key == zero {
		return false
	}
	if existing, ok := s.lru.Peek(key); ok {
		s.lru.Add(key, entry[V]{seq: existing.seq, value: item})
		return true
	}
	s.seq++
	s.lru.Add(key, entry[V]{seq: s.seq, value: item})
	return true
}

// GetAllIfFresh returns all items when the store is non-empty and was filled
// no longer than ttl ago. Anything else is a miss.
func (s *Store[K, V]) GetAllIfFresh(ttl time.Duration) ([]V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lru.Len() == 0 || s.freshAt.IsZero() || s.now().Sub(s.freshAt) > ttl {
		s.misses++
		metrics.RecordCacheLookup(s.name, "miss")
		return nil, false
	}
	s.hits++
	metrics.RecordCacheLookup(s.name, "hit")
	return s.valuesLocked(), true
}

// GetAllAllowStale returns all items regardless of freshness, in insertion order.
func (s *Store[K, V]) GetAllAllowStale() []V {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lru.Len() == 0 {
		metrics.RecordCacheLookup(s.name, "miss")
		return nil
	}
	metrics.RecordCacheLookup(s.name, "stale")
	return s.valuesLocked()
}

// Get looks up a single item, refreshing its recency. Freshness is not consulted.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lru.Get(key)
	if !ok {
		s.misses++
		var zero V
		return zero, false
	}
	s.hits++
	return e.value, true
}

// Clear evicts everything and resets freshness.
func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked()
	metrics.CacheEntries.WithLabelValues(s.name).Set(0)
}

// Len returns the number of cached entries.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// Freshness returns the time the current contents were stored and whether it is set.
func (s *Store[K, V]) Freshness() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freshAt, !s.freshAt.IsZero()
}

// Stats returns a snapshot of the store counters.
func (s *Store[K, V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Name:      s.name,
		Len:       s.lru.Len(),
		Capacity:  s.capacity,
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evicted,
		FreshAt:   s.freshAt,
	}
}

func (s *Store[K, V]) purgeLocked() {
	s.purging = true
	s.lru.Purge()
	s.purging = false
	s.freshAt = time.Time{}
	s.seq = 0
}

// valuesLocked returns values ordered by insertion sequence.
func (s *Store[K, V]) valuesLocked() []V {
	entries := s.lru.Values()
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]V, len(entries))
	for i, e := range entries {
		out[i] = e.value
	}
	return out
}
