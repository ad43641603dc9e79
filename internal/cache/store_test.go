// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/bazaar/internal/models"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func productKey(p models.Product) string { return p.ID }

func newProducts(t *testing.T, capacity int) (*Store[string, models.Product], *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	return New(AllProducts, capacity, productKey, WithClock(clock.Now)), clock
}

func products(ids ...string) []models.Product {
	out := make([]models.Product, len(ids))
	for i, id := range ids {
		out[i] = models.Product{ID: id, Name: "product " + id}
	}
	return out
}

func ids(items []models.Product) []string {
	out := make([]string, len(items))
	for i, p := range items {
		out[i] = p.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStore_GetAllIfFresh(t *testing.T) {
	t.Parallel()

	s, clock := newProducts(t, 10)
	ttl := 5 * time.Minute

	if _, ok := s.GetAllIfFresh(ttl); ok {
		t.Fatal("empty store must miss")
	}

	s.PutAll(products("a", "b", "c"))

	got, ok := s.GetAllIfFresh(ttl)
	if !ok {
		t.Fatal("expected fresh hit right after PutAll")
	}
	if want := []string{"a", "b", "c"}; !equalIDs(ids(got), want) {
		t.Errorf("GetAllIfFresh = %v, want %v", ids(got), want)
	}

	clock.Advance(ttl)
	if _, ok := s.GetAllIfFresh(ttl); !ok {
		t.Error("exactly ttl old must still be fresh")
	}

	clock.Advance(time.Millisecond)
	if got, ok := s.GetAllIfFresh(ttl); ok || got != nil {
		t.Errorf("older than ttl must miss, got %v", ids(got))
	}

	if stale := s.GetAllAllowStale(); !equalIDs(ids(stale), []string{"a", "b", "c"}) {
		t.Errorf("GetAllAllowStale = %v", ids(stale))
	}
}

func TestStore_PutAllReplacesWholeSet(t *testing.T) {
	t.Parallel()

	s, _ := newProducts(t, 10)
	s.PutAll(products("a", "b", "c"))
	s.PutAll(products("d", "b"))

	got, ok := s.GetAllIfFresh(time.Minute)
	if !ok {
		t.Fatal("expected fresh hit")
	}
	if want := []string{"d", "b"}; !equalIDs(ids(got), want) {
		t.Errorf("GetAllIfFresh = %v, want exactly %v", ids(got), want)
	}
	if _, ok := s.Get("a"); ok {
		t.Error("entry from the previous PutAll must be gone")
	}
}

func TestStore_PutAllOverCapacityIsNotFresh(t *testing.T) {
	t.Parallel()

	s, _ := newProducts(t, 3)
	s.PutAll(products("a", "b", "c", "d", "e"))

	if _, ok := s.GetAllIfFresh(time.Hour); ok {
		t.Error("a truncated set must not be served as fresh")
	}
	if _, set := s.Freshness(); set {
		t.Error("freshness must stay unset after an oversized PutAll")
	}
	if got, want := ids(s.GetAllAllowStale()), []string{"c", "d", "e"}; !equalIDs(got, want) {
		t.Errorf("GetAllAllowStale = %v, want %v", got, want)
	}

	s.PutAll(products("x", "y", "z"))
	if _, ok := s.GetAllIfFresh(time.Hour); !ok {
		t.Error("a set that fits must be fresh again")
	}
}

func TestStore_PutAllEmptyClears(t *testing.T) {
	t.Parallel()

	s, _ := newProducts(t, 10)
	s.PutAll(products("a"))
	s.PutAll(nil)

	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
	if _, set := s.Freshness(); set {
		t.Error("freshness must be reset by an empty PutAll")
	}
	if _, ok := s.GetAllIfFresh(time.Hour); ok {
		t.Error("empty store must miss")
	}
}

func TestStore_PutSetsFreshnessOnlyWhenUnset(t *testing.T) {
	t.Parallel()

	s, clock := newProducts(t, 10)
	s.Put(models.Product{ID: "a"})
	first, set := s.Freshness()
	if !set {
		t.Fatal("Put into an empty store must set freshness")
	}

	clock.Advance(time.Minute)
	s.Put(models.Product{ID: "b"})
	if second, _ := s.Freshness(); !second.Equal(first) {
		t.Errorf("Put must not move freshness: %v -> %v", first, second)
	}

	clock.Advance(time.Minute)
	s.PutAll(products("c"))
	if third, _ := s.Freshness(); !third.Equal(clock.Now()) {
		t.Errorf("PutAll must set freshness to now, got %v", third)
	}
}

func TestStore_PutUpsertKeepsPosition(t *testing.T) {
	t.Parallel()

	s, _ := newProducts(t, 10)
	s.PutAll(products("a", "b", "c"))
	s.Put(models.Product{ID: "a", Name: "renamed"})
	s.Put(models.Product{ID: "d"})

	got := s.GetAllAllowStale()
	if want := []string{"a", "b", "c", "d"}; !equalIDs(ids(got), want) {
		t.Errorf("order = %v, want %v", ids(got), want)
	}
	if got[0].Name != "renamed" {
		t.Errorf("upsert did not replace value: %+v", got[0])
	}
}

func TestStore_BlankKeysIgnored(t *testing.T) {
	t.Parallel()

	s, _ := newProducts(t, 10)
	s.PutAll([]models.Product{{ID: ""}, {ID: "a"}})
	s.Put(models.Product{ID: ""})

	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}

	s.PutAll([]models.Product{{ID: ""}})
	if _, set := s.Freshness(); set {
		t.Error("a PutAll that stores nothing must leave freshness unset")
	}
}

// A full cache at capacity evicts the least recently accessed entry when a
// new id arrives, and stays at capacity.
func TestStore_EvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	t.Parallel()

	const capacity = 500
	s, _ := newProducts(t, capacity)

	batch := make([]string, capacity)
	for i := range batch {
		batch[i] = fmt.Sprintf("p%03d", i)
	}
	s.PutAll(products(batch...))

	// Touch the oldest so p001 becomes least recently used.
	if _, ok := s.Get("p000"); !ok {
		t.Fatal("p000 should be cached")
	}

	s.Put(models.Product{ID: "p500"})

	if s.Len() != capacity {
		t.Errorf("Len = %d, want %d", s.Len(), capacity)
	}
	if _, ok := s.Get("p001"); ok {
		t.Error("p001 should have been evicted")
	}
	if _, ok := s.Get("p000"); !ok {
		t.Error("p000 was recently accessed and must survive")
	}
	if _, ok := s.Get("p500"); !ok {
		t.Error("p500 should be cached")
	}
	if st := s.Stats(); st.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", st.Evictions)
	}
}

func TestStore_ClearResetsEverything(t *testing.T) {
	t.Parallel()

	s, _ := newProducts(t, 3)
	s.PutAll(products("a", "b"))
	s.Clear()

	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
	if got := s.GetAllAllowStale(); got != nil {
		t.Errorf("GetAllAllowStale = %v, want nil", ids(got))
	}
	if st := s.Stats(); st.Evictions != 0 {
		t.Errorf("Clear must not count as eviction, got %d", st.Evictions)
	}
}

func TestStore_DefaultCapacity(t *testing.T) {
	t.Parallel()

	s := New(Businesses, 0, func(b models.Business) string { return b.ID })
	if got := s.Stats().Capacity; got != DefaultCapacity {
		t.Errorf("Capacity = %d, want %d", got, DefaultCapacity)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s, _ := newProducts(t, 50)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				switch i % 4 {
				case 0:
					s.Put(models.Product{ID: id})
				case 1:
					s.Get(id)
				case 2:
					s.GetAllIfFresh(time.Minute)
				default:
					s.PutAll(products(id))
				}
			}
		}(w)
	}
	wg.Wait()

	if s.Len() > 50 {
		t.Errorf("Len = %d exceeds capacity", s.Len())
	}
}
