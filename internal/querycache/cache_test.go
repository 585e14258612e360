// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package querycache_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/washdesk/internal/querycache"
)

type countingFetcher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFetcher) Get(_ context.Context, path string, out any) error {
	n := f.calls.Add(1)
	if f.err != nil {
		return f.err
	}
	time.Sleep(5 * time.Millisecond)
	payload, _ := json.Marshal(map[string]any{"path": path, "call": n})
	return json.Unmarshal(payload, out)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type result struct {
	Path string `json:"path"`
	Call int    `json:"call"`
}

/*
TestCache_HitAndExpiry verifies entries are served until their TTL elapses.
*/
func TestCache_HitAndExpiry(t *testing.T) {
	fetcher := &countingFetcher{}
	clk := &clock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	cache := querycache.New(fetcher, 30*time.Second, querycache.WithClock(clk.Now))

	var got result
	require.NoError(t, cache.Fetch(t.Context(), 1, "/coupons", &got))
	require.NoError(t, cache.Fetch(t.Context(), 1, "/coupons", &got))
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, "/coupons", got.Path)

	clk.Advance(31 * time.Second)
	require.NoError(t, cache.Fetch(t.Context(), 1, "/coupons", &got))
	assert.Equal(t, int32(2), fetcher.calls.Load())
	assert.Equal(t, 2, got.Call)
}

/*
TestCache_StationIsolation verifies two stations never share an entry.
*/
func TestCache_StationIsolation(t *testing.T) {
	fetcher := &countingFetcher{}
	cache := querycache.New(fetcher, time.Minute)

	require.NoError(t, cache.Fetch(t.Context(), 1, "/clients", nil))
	require.NoError(t, cache.Fetch(t.Context(), 2, "/clients", nil))
	assert.Equal(t, int32(2), fetcher.calls.Load())
	assert.Equal(t, 2, cache.Len())

	require.NoError(t, cache.Fetch(t.Context(), 1, "/clients", nil))
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

/*
TestCache_ClearOnLogout verifies Clear empties the cache.
*/
func TestCache_ClearOnLogout(t *testing.T) {
	fetcher := &countingFetcher{}
	cache := querycache.New(fetcher, time.Minute)

	require.NoError(t, cache.Fetch(t.Context(), 1, "/reports", nil))
	cache.Clear(t.Context())
	assert.Zero(t, cache.Len())

	require.NoError(t, cache.Fetch(t.Context(), 1, "/reports", nil))
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

// gatedFetcher blocks inside Get until release is closed.
type gatedFetcher struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{entered: make(chan struct{}, 8), release: make(chan struct{})}
}

func (f *gatedFetcher) Get(_ context.Context, path string, out any) error {
	n := f.calls.Add(1)
	f.entered <- struct{}{}
	<-f.release
	payload, _ := json.Marshal(map[string]any{"path": path, "call": n})
	return json.Unmarshal(payload, out)
}

/*
TestCache_ClearFencesInflightFetch verifies a fetch started before Clear
never writes its payload back and is never joined by later callers.
*/
func TestCache_ClearFencesInflightFetch(t *testing.T) {
	fetcher := newGatedFetcher()
	cache := querycache.New(fetcher, time.Minute)

	// 1. A fetch for the previous operator is in flight
	stale := make(chan result, 1)
	go func() {
		var got result
		assert.NoError(t, cache.Fetch(context.Background(), 4, "/coupons", &got))
		stale <- got
	}()
	<-fetcher.entered

	// 2. Logout clears the cache while it is still running
	cache.Clear(t.Context())

	// 3. A new caller starts its own backend call
	fresh := make(chan result, 1)
	go func() {
		var got result
		assert.NoError(t, cache.Fetch(context.Background(), 4, "/coupons", &got))
		fresh <- got
	}()
	select {
	case <-fetcher.entered:
	case <-time.After(time.Second):
		t.Fatal("fetch after clear joined the stale call")
	}

	close(fetcher.release)
	first, second := <-stale, <-fresh
	assert.NotEqual(t, first.Call, second.Call)
	assert.Equal(t, int32(2), fetcher.calls.Load())

	// 4. Only the fresh payload is cached
	var cached result
	require.NoError(t, cache.Fetch(t.Context(), 4, "/coupons", &cached))
	assert.Equal(t, second.Call, cached.Call)
	assert.Equal(t, 1, cache.Len())
}

/*
TestCache_ClearDropsLateWrite verifies a fetch released after Clear leaves the cache empty.
*/
func TestCache_ClearDropsLateWrite(t *testing.T) {
	fetcher := newGatedFetcher()
	cache := querycache.New(fetcher, time.Minute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, cache.Fetch(context.Background(), 1, "/reports", nil))
	}()
	<-fetcher.entered

	cache.Clear(t.Context())
	close(fetcher.release)
	<-done

	assert.Zero(t, cache.Len(), "entries after clear")
}

/*
TestCache_CoalescesMisses verifies concurrent misses share one backend call.
*/
func TestCache_CoalescesMisses(t *testing.T) {
	fetcher := &countingFetcher{}
	cache := querycache.New(fetcher, time.Minute)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var got result
			assert.NoError(t, cache.Fetch(context.Background(), 3, "/inventory", &got))
			assert.Equal(t, "/inventory", got.Path)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, fetcher.calls.Load(), int32(2))
}

/*
TestCache_ErrorsAreNotCached verifies a failed fetch is retried on the next call.
*/
func TestCache_ErrorsAreNotCached(t *testing.T) {
	boom := errors.New("boom")
	fetcher := &countingFetcher{err: boom}
	cache := querycache.New(fetcher, time.Minute)

	assert.ErrorIs(t, cache.Fetch(t.Context(), 1, "/incidents", nil), boom)
	assert.ErrorIs(t, cache.Fetch(t.Context(), 1, "/incidents", nil), boom)
	assert.Equal(t, int32(2), fetcher.calls.Load())
	assert.Zero(t, cache.Len())
}

/*
TestCache_Bounded verifies the cache never grows past its bound.
*/
func TestCache_Bounded(t *testing.T) {
	cache := querycache.New(&countingFetcher{}, time.Minute, querycache.WithMaxEntries(3))

	for id := range int64(10) {
		require.NoError(t, cache.Fetch(t.Context(), id, "/dashboard", nil))
		assert.LessOrEqual(t, cache.Len(), 3)
	}
}

/*
TestCache_ZeroTTL verifies a zero TTL disables caching.
*/
func TestCache_ZeroTTL(t *testing.T) {
	fetcher := &countingFetcher{}
	cache := querycache.New(fetcher, 0)

	require.NoError(t, cache.Fetch(t.Context(), 1, "/stations", nil))
	require.NoError(t, cache.Fetch(t.Context(), 1, "/stations", nil))
	assert.Equal(t, int32(2), fetcher.calls.Load())
}
