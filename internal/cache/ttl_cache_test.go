package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for deterministic expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
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

func newTestCache(t *testing.T, maxSize int, ttl time.Duration) (*Cache[string], *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	c := New[string](maxSize, ttl, WithClock[string](clock), WithSweepInterval[string](0))
	t.Cleanup(c.Close)
	return c, clock
}

func TestCache_GetSet(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Minute)

	c.Set("a", "alpha", 0)
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(t, 2, time.Minute)

	c.Set("a", "1", 0)
	c.Set("b", "2", 0)

	// Touch "a" so "b" becomes the LRU entry.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", "3", 0)

	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Has("a"))
	assert.False(t, c.Has("b"))
	assert.True(t, c.Has("c"))
}

func TestCache_ExpiryOnRead(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Minute)

	c.Set("a", "alpha", 5*time.Second)
	clock.Advance(6 * time.Second)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_PerEntryTTL(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Minute)

	c.Set("short", "s", 10*time.Second)
	c.Set("long", "l", 10*time.Minute)

	clock.Advance(30 * time.Second)

	assert.False(t, c.Has("short"))
	assert.True(t, c.Has("long"))
}

func TestCache_SweepRemovesUnreadExpiredEntries(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Second)

	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), "v", time.Second)
	}
	clock.Advance(2 * time.Second)

	// Len sweeps before counting, so entries that were never read again
	// must still disappear.
	assert.Equal(t, 0, c.Len())
}

func TestCache_SetUpdatesExistingEntry(t *testing.T) {
	c, _ := newTestCache(t, 2, time.Minute)

	c.Set("a", "1", 0)
	c.Set("b", "2", 0)
	c.Set("a", "1-updated", 0)

	// Updating "a" refreshed its recency, so "b" gets evicted next.
	c.Set("c", "3", 0)

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1-updated", got)
	assert.False(t, c.Has("b"))
}

func TestCache_Delete(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Minute)

	c.Set("a", "alpha", 0)
	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.False(t, c.Has("a"))
}

func TestCache_Stats(t *testing.T) {
	c, _ := newTestCache(t, 4, time.Minute)

	c.Set("a", "1", 0)
	c.Set("b", "2", 0)
	c.Get("a")
	c.Get("nope")

	stats := c.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 4, stats.MaxSize)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 50.0, stats.UtilizationPercent, 0.001)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(t, 100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", j%50)
				c.Set(key, "v", 0)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 100)
}
