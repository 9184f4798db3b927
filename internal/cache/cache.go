// Package cache provides a TTL cache for live places-search results.
// Results for a quantized query key stay valid for a fixed window; expired
// entries are dropped lazily on read and in bulk by a sweeper the owner
// runs. The cache holds state explicitly so each service instance owns its
// own lifecycle; nothing here is package-global.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/curbdata/parking-aggregator/internal/domain"
)

// SpotCache is a thread-safe TTL cache mapping query keys to candidate
// spot lists.
type SpotCache struct {
	ttl   time.Duration
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	spots     []domain.CandidateSpot
	expiresAt time.Time
}

// New creates an empty cache. Entries live for ttl after Put.
func New(ttl time.Duration, clock clockwork.Clock) *SpotCache {
	return &SpotCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached spots for key. Expired entries are removed and
// reported as misses.
func (c *SpotCache) Get(key string) ([]domain.CandidateSpot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.spots, true
}

// Put stores spots under key, resetting its TTL.
func (c *SpotCache) Put(key string, spots []domain.CandidateSpot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		spots:     spots,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Len returns the number of entries, expired or not.
func (c *SpotCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes all expired entries and returns how many were dropped.
func (c *SpotCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	dropped := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			dropped++
		}
	}
	return dropped
}

// Run sweeps the cache every interval until ctx is canceled. The owner
// starts it in a goroutine and stops it by canceling ctx; without it the
// cache still works, it just only drops expired entries on read.
func (c *SpotCache) Run(ctx context.Context, interval time.Duration) {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.Sweep()
		}
	}
}
