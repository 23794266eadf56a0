package cache

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 100
)

// Entry is a cached value with its insertion time
type Entry[V any] struct {
	Key        Key
	Value      V
	InsertedAt time.Time
}

// Stats reports cache activity counters
type Stats struct {
	Hits    uint64
	Misses  uint64
	Expired uint64
	Entries int
}

// Cache is a TTL-bounded LRU cache safe for concurrent use
type Cache[V any] struct {
	mu    sync.Mutex
	lru   *lru.Cache
	ttl   time.Duration
	now   func() time.Time
	stats Stats
}

// Option configures a Cache
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates a cache holding at most maxEntries values for ttl each.
// Non-positive arguments fall back to the defaults.
func New[V any](ttl time.Duration, maxEntries int, opts ...Option) *Cache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	return &Cache[V]{
		lru: lru.New(maxEntries),
		ttl: ttl,
		now: o.now,
	}
}

// Get returns the value stored under key if it has not expired.
// An expired entry is removed before reporting a miss.
func (c *Cache[V]) Get(key Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	raw, ok := c.lru.Get(key)
	if !ok {
		c.stats.Misses++
		return zero, false
	}

	entry := raw.(*Entry[V])
	if c.now().Sub(entry.InsertedAt) >= c.ttl {
		c.lru.Remove(key)
		c.stats.Expired++
		c.stats.Misses++
		return zero, false
	}

	c.stats.Hits++
	return entry.Value, true
}

// Set stores value under key with a fresh timestamp, replacing any previous entry
func (c *Cache[V]) Set(key Key, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, &Entry[V]{
		Key:        key,
		Value:      value,
		InsertedAt: c.now(),
	})
}

// Delete removes key from the cache
func (c *Cache[V]) Delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Len returns the number of stored entries, including ones not yet observed as expired
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// TTL returns the configured entry lifetime
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}

// Stats returns a snapshot of the cache counters
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = c.lru.Len()
	return s
}
