package dex

import (
	"math/rand"
	"sync"
	"time"
)

const (
	// ReserveTTL bounds how long pair existence and reserve reads are
	// reused across routing searches.
	ReserveTTL = 30 * time.Minute

	sweepProbability = 0.02
)

type reserveEntry struct {
	value    any
	storedAt time.Time
}

// ReserveCache is the in-process TTL cache for pool existence flags and
// reserve snapshots. Expired entries are dropped lazily on read, plus a
// probabilistic full sweep on write so idle keys do not accumulate.
type ReserveCache struct {
	mu      sync.RWMutex
	entries map[string]reserveEntry
	ttl     time.Duration
	now     func() time.Time
	sample  func() float64
}

func NewReserveCache(ttl time.Duration) *ReserveCache {
	if ttl <= 0 {
		ttl = ReserveTTL
	}
	return &ReserveCache{
		entries: make(map[string]reserveEntry),
		ttl:     ttl,
		now:     time.Now,
		sample:  rand.Float64,
	}
}

// SetClock overrides the wall clock, for tests.
func (c *ReserveCache) SetClock(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// SetSampler overrides the sweep sampler, for tests.
func (c *ReserveCache) SetSampler(sample func() float64) {
	if sample != nil {
		c.sample = sample
	}
}

func (c *ReserveCache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		c.mu.Lock()
		if current, still := c.entries[key]; still && current.storedAt.Equal(entry.storedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (c *ReserveCache) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = reserveEntry{value: value, storedAt: c.now()}
	c.mu.Unlock()

	if c.sample() < sweepProbability {
		c.Sweep()
	}
}

// Sweep removes every expired entry and reports how many were dropped.
func (c *ReserveCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) > c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *ReserveCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
