package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache[T any](size int, ttl time.Duration, opts ...Option[T]) (*LRUCache[T], *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[T](size, ttl, opts...)
	c.now = clock.Now
	return c, clock
}

func TestLRUCache_Eviction(t *testing.T) {
	var evicted []string
	c, _ := newTestCache[string](3, time.Hour, WithEvictHook(func(k, _ string) { evicted = append(evicted, k) }))

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	c.Set("key4", "value4")

	if _, found := c.Get("key1"); found {
		t.Error("Expected key1 to be evicted")
	}
	for _, k := range []string{"key2", "key3", "key4"} {
		if _, found := c.Get(k); !found {
			t.Errorf("Expected %s to be present", k)
		}
	}
	if len(evicted) != 1 || evicted[0] != "key1" {
		t.Errorf("evict hook calls = %v", evicted)
	}
}

func TestLRUCache_RecentUseProtects(t *testing.T) {
	c, _ := newTestCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, found := c.Get("b"); found {
		t.Error("least recently used key must be evicted")
	}
	if _, found := c.Get("a"); !found {
		t.Error("recently read key must survive")
	}
}

func TestLRUCache_TTLExpiration(t *testing.T) {
	c, clock := newTestCache[string](100, 50*time.Millisecond)
	c.Set("key1", "value1")

	if _, found := c.Get("key1"); !found {
		t.Error("Expected key1 to be found immediately")
	}
	clock.Advance(60 * time.Millisecond)
	if _, found := c.Get("key1"); found {
		t.Error("Expected key1 to be expired")
	}
}

func TestLRUCache_SlidingExpiry(t *testing.T) {
	c, clock := newTestCache[string](10, time.Minute, WithSlidingExpiry[string]())
	c.Set("s", "session")

	for range 5 {
		clock.Advance(40 * time.Second)
		if _, found := c.Get("s"); !found {
			t.Fatal("active entry must not expire")
		}
	}
	clock.Advance(2 * time.Minute)
	if _, found := c.Get("s"); found {
		t.Error("idle entry must expire")
	}
}

func TestLRUCache_CleanExpired(t *testing.T) {
	var evicted int
	c, clock := newTestCache[string](100, 50*time.Millisecond, WithEvictHook(func(string, string) { evicted++ }))
	c.Set("key1", "value1")
	c.Set("key2", "value2")
	clock.Advance(30 * time.Millisecond)
	c.Set("key3", "value3")
	clock.Advance(30 * time.Millisecond)

	if cleaned := c.CleanExpired(); cleaned != 2 {
		t.Errorf("Expected 2 items cleaned, got %d", cleaned)
	}
	if c.Size() != 1 {
		t.Errorf("Expected 1 item remaining, got %d", c.Size())
	}
	if evicted != 2 {
		t.Errorf("evict hook calls = %d", evicted)
	}
}

func TestLRUCache_DeleteCallsHook(t *testing.T) {
	var got string
	c, _ := newTestCache[string](10, time.Hour, WithEvictHook(func(k, _ string) { got = k }))
	c.Set("x", "1")
	c.Delete("x")
	c.Delete("missing")
	if got != "x" || c.Size() != 0 {
		t.Errorf("delete: hook=%q size=%d", got, c.Size())
	}
}

func TestManager_StartStop(t *testing.T) {
	c := NewLRUCache[string](10, time.Millisecond)
	c.Set("k", "v")
	m := NewManager(nil)
	m.Register(c)
	m.StartCleanup(5 * time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for c.Size() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()
	m.Stop()
	if c.Size() != 0 {
		t.Error("manager did not purge expired entries")
	}
}
