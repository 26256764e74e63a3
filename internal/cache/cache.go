// Package cache provides a small time-bounded lookup cache for gateway records.
//
// Entries are checked for staleness lazily on read. Nothing is evicted on Get,
// so a key that is written once and never read again stays in memory until a
// Sweep (or the janitor started by StartJanitor) reclaims it. Cache contents
// only ever save a remote call; dropping every entry changes latency, never
// results.
package cache

import (
	"context"
	"sync"
	"time"
)

// Entry is a cached value together with the moment it was stored.
type Entry[V any] struct {
	Value      V
	InsertedAt time.Time
}

// Observer receives hit and miss notifications. telemetry.Metrics satisfies it.
type Observer interface {
	CacheHit(name string)
	CacheMiss(name string)
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now      func() time.Time
	observer Observer
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithObserver reports hits and misses to o.
func WithObserver(o Observer) Option {
	return func(opts *options) {
		opts.observer = o
	}
}

// Cache is a string-keyed store whose entries are valid while
// now - InsertedAt < TTL. It is safe for concurrent use; operations on
// different keys never block each other and same-key writes are
// last-write-wins.
type Cache[V any] struct {
	name     string
	ttl      time.Duration
	now      func() time.Time
	observer Observer
	entries  sync.Map // string -> *Entry[V]
}

// New creates a cache. name labels metrics; ttl must be positive.
func New[V any](name string, ttl time.Duration, opts ...Option) *Cache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		name:     name,
		ttl:      ttl,
		now:      o.now,
		observer: o.observer,
	}
}

// Name returns the label the cache was created with.
func (c *Cache[V]) Name() string {
	return c.name
}

// TTL returns the validity window for entries.
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}

// Get returns the value for key if present and fresh. Stale entries are
// reported as absent but left in place.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	raw, ok := c.entries.Load(key)
	if !ok {
		c.miss()
		return zero, false
	}

	entry := raw.(*Entry[V])
	if !c.fresh(entry) {
		c.miss()
		return zero, false
	}

	c.hit()
	return entry.Value, true
}

// Put stores value under key, replacing any previous entry.
func (c *Cache[V]) Put(key string, value V) {
	c.entries.Store(key, &Entry[V]{Value: value, InsertedAt: c.now()})
}

// PutIfAbsent stores value unless key already holds a fresh entry, and
// reports whether it stored. A stale entry is replaced.
func (c *Cache[V]) PutIfAbsent(key string, value V) bool {
	entry := &Entry[V]{Value: value, InsertedAt: c.now()}
	for {
		raw, loaded := c.entries.LoadOrStore(key, entry)
		if !loaded {
			return true
		}
		if c.fresh(raw.(*Entry[V])) {
			return false
		}
		if c.entries.CompareAndSwap(key, raw, entry) {
			return true
		}
	}
}

// Invalidate removes key. Removing an absent key is a no-op.
func (c *Cache[V]) Invalidate(key string) {
	c.entries.Delete(key)
}

// Len counts stored entries, stale ones included.
func (c *Cache[V]) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Sweep deletes every stale entry and returns how many were removed.
// A concurrent Put that replaces a stale entry during the sweep is kept.
func (c *Cache[V]) Sweep() int {
	removed := 0
	c.entries.Range(func(k, v any) bool {
		if !c.fresh(v.(*Entry[V])) {
			if c.entries.CompareAndDelete(k, v) {
				removed++
			}
		}
		return true
	})
	return removed
}

// StartJanitor sweeps the cache every interval until ctx is done.
// The returned channel is closed once the janitor goroutine has exited.
func (c *Cache[V]) StartJanitor(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()

	return done
}

func (c *Cache[V]) fresh(e *Entry[V]) bool {
	return c.now().Sub(e.InsertedAt) < c.ttl
}

func (c *Cache[V]) hit() {
	if c.observer != nil {
		c.observer.CacheHit(c.name)
	}
}

func (c *Cache[V]) miss() {
	if c.observer != nil {
		c.observer.CacheMiss(c.name)
	}
}
