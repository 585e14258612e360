// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package querycache keeps recent backend collections in memory for the console views.

Entries are keyed by station and path, so switching station never serves
another station's data. The whole cache is dropped when the session is cleared.
Concurrent misses on the same key share one backend call.

Every Clear starts a new generation. A fetch started in an earlier generation
still answers its caller but never writes back, and later callers never join it.
*/
package querycache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/taibuivan/washdesk/internal/platform/apperr"
)

// DefaultMaxEntries bounds the cache before expired entries are swept on write.
const DefaultMaxEntries = 256

// Fetcher loads one backend collection. [apiclient.Client] satisfies it.
type Fetcher interface {
	Get(ctx context.Context, path string, out any) error
}

type entry struct {
	payload   json.RawMessage
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Cache is a TTL cache in front of a [Fetcher].
type Cache struct {
	fetcher    Fetcher
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu         sync.RWMutex
	entries    map[string]entry
	generation uint64

	group singleflight.Group
}

// Option configures a [Cache].
type Option func(*Cache)

// WithClock replaces [time.Now].
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMaxEntries changes [DefaultMaxEntries].
func WithMaxEntries(n int) Option {
	return func(c *Cache) { c.maxEntries = n }
}

// New creates a Cache whose entries live for ttl. A zero ttl disables caching.
func New(fetcher Fetcher, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		fetcher:    fetcher,
		ttl:        ttl,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		entries:    make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key identifies a collection within a station scope. Station 0 is the unscoped view.
func Key(stationID int64, path string) string {
	return strconv.FormatInt(stationID, 10) + ":" + path
}

// # Reads

// Fetch decodes the collection at path for stationID into out, calling the
// backend only on a miss.
func (c *Cache) Fetch(ctx context.Context, stationID int64, path string, out any) error {
	key := Key(stationID, path)

	payload, generation, ok := c.lookup(key)
	if ok {
		return decode(payload, out)
	}

	flight := strconv.FormatUint(generation, 10) + "/" + key
	result, err, _ := c.group.Do(flight, func() (any, error) {
		var payload json.RawMessage
		if err := c.fetcher.Get(ctx, path, &payload); err != nil {
			return nil, err
		}
		c.store(generation, key, payload)
		return payload, nil
	})
	if err != nil {
		return err
	}
	return decode(result.(json.RawMessage), out)
}

// lookup returns the live entry for key and the generation it was read in.
func (c *Cache) lookup(key string) (json.RawMessage, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.expired(c.now()) {
		return nil, c.generation, false
	}
	return e.payload, c.generation, true
}

// # Writes

// store writes payload unless a Clear happened since generation was read.
func (c *Cache) store(generation uint64, key string, payload json.RawMessage) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return
	}

	if len(c.entries) >= c.maxEntries {
		c.sweepLocked()
	}
	c.entries[key] = entry{payload: payload, expiresAt: c.now().Add(c.ttl)}
}

// Clear drops every entry and fences fetches still in flight.
// Its signature matches the session logout hook.
func (c *Cache) Clear(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	c.generation++
}

// Len reports the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Run sweeps expired entries every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			c.sweepLocked()
			c.mu.Unlock()
		}
	}
}

// sweepLocked removes expired entries. When every entry is still fresh the
// whole map is reset so the bound holds. Callers hold c.mu.
func (c *Cache) sweepLocked() {
	now := c.now()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) >= c.maxEntries {
		c.entries = make(map[string]entry)
	}
}

func decode(payload json.RawMessage, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return apperr.Internal(fmt.Errorf("querycache: decode: %w", err))
	}
	return nil
}
