package cache

import (
	"container/list"
	"sync"
	"time"

	"steward/ports"
)

const defaultSweepInterval = 60 * time.Second

// entry is one cached value with its own expiry.
type entry[V any] struct {
	key    string
	value  V
	expiry time.Time
}

// Stats reports cache occupancy for monitoring endpoints.
type Stats struct {
	Size               int     `json:"size"`
	MaxSize            int     `json:"max_size"`
	Hits               int64   `json:"hits"`
	Misses             int64   `json:"misses"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

// Cache is a capacity-bounded cache with per-entry TTL and LRU eviction.
// Expired entries are evicted lazily on read and by a background sweep so
// never-read keys cannot grow the map without bound. Safe for concurrent use.
type Cache[V any] struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front = most recently used
	maxSize    int
	defaultTTL time.Duration
	clock      ports.Clock

	hits   int64
	misses int64

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithClock injects a deterministic clock for tests.
func WithClock[V any](clock ports.Clock) Option[V] {
	return func(c *Cache[V]) { c.clock = clock }
}

// WithSweepInterval overrides the background sweep cadence. A non-positive
// interval disables the sweeper entirely.
func WithSweepInterval[V any](interval time.Duration) Option[V] {
	return func(c *Cache[V]) {
		c.stopSweeper()
		if interval > 0 {
			c.startSweeper(interval)
		}
	}
}

// New creates a cache holding at most maxSize entries, each expiring after
// defaultTTL unless Set overrides it. Callers must Close the cache to stop
// the background sweeper.
func New[V any](maxSize int, defaultTTL time.Duration, opts ...Option[V]) *Cache[V] {
	if maxSize <= 0 {
		maxSize = 100
	}
	c := &Cache[V]{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		clock:      ports.SystemClock{},
		stop:       make(chan struct{}),
	}
	c.startSweeper(defaultSweepInterval)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value and refreshes its recency. Expired entries
// are removed and reported as misses.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	ent := el.Value.(*entry[V])
	if c.clock.Now().After(ent.expiry) {
		c.removeElement(el)
		c.misses++
		return zero, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return ent.value, true
}

// Set stores value under key with the given TTL (defaultTTL when ttl <= 0),
// evicting the least-recently-used entry at capacity.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	expiry := c.clock.Now().Add(ttl)

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry[V])
		ent.value = value
		ent.expiry = expiry
		c.order.MoveToFront(el)
		return
	}

	if len(c.items) >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value, expiry: expiry})
}

// Has reports whether key is present and unexpired, without touching recency.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	if c.clock.Now().After(el.Value.(*entry[V]).expiry) {
		c.removeElement(el)
		return false
	}
	return true
}

// Delete removes key. Returns whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// Len returns the number of live entries after purging expired ones.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	return len(c.items)
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Stats returns a point-in-time occupancy snapshot.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	return Stats{
		Size:               len(c.items),
		MaxSize:            c.maxSize,
		Hits:               c.hits,
		Misses:             c.misses,
		UtilizationPercent: float64(len(c.items)) / float64(c.maxSize) * 100,
	}
}

// Close stops the background sweeper. The cache remains usable afterwards;
// expiry then happens only lazily on access.
func (c *Cache[V]) Close() {
	c.stopSweeper()
}

func (c *Cache[V]) startSweeper(interval time.Duration) {
	c.stop = make(chan struct{})
	c.stopOnce = sync.Once{}
	go func(stop chan struct{}) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.mu.Lock()
				c.sweepLocked()
				c.mu.Unlock()
			case <-stop:
				return
			}
		}
	}(c.stop)
}

func (c *Cache[V]) stopSweeper() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// sweepLocked removes every expired entry. Caller holds c.mu.
func (c *Cache[V]) sweepLocked() {
	now := c.clock.Now()
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*entry[V]).expiry) {
			c.removeElement(el)
		}
		el = prev
	}
}

func (c *Cache[V]) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[V]).key)
}
