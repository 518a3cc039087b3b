// Package ratelimit implements fixed-window request limiting keyed by
// client source. Every arrival in a window consumes a slot, including the
// ones that get rejected, so a client hammering past its limit stays
// blocked until the window turns over.
package ratelimit

import (
	"sync"
	"time"
)

// shardCount controls how many independent shards the in-memory limiter
// uses. Each shard has its own mutex, which drastically reduces lock
// contention under concurrent requests from distinct sources.
const shardCount = 16

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window resets, rounded
// up and never below one. Suitable for a Retry-After header.
func (d Decision) RetryAfter(now time.Time) int {
	rem := d.ResetAt.Sub(now)
	if rem <= 0 {
		return 1
	}
	return int((rem + time.Second - 1) / time.Second)
}

// Limiter decides whether a keyed request fits within its current window.
type Limiter interface {
	Allow(key string, limit int) Decision
}

// Memory is a sharded in-memory fixed-window limiter. Keys map to one of
// [shardCount] shards via FNV hashing so concurrent Allow calls on
// different keys rarely contend on the same mutex.
type Memory struct {
	window time.Duration
	shards [shardCount]memoryShard
}

type memoryShard struct {
	mu       sync.Mutex
	counters map[string]*counter
}

type counter struct {
	count   int
	resetAt time.Time
}

// NewMemory returns a limiter with the given window length. Windows of
// zero or less fall back to one minute.
func NewMemory(window time.Duration) *Memory {
	if window <= 0 {
		window = time.Minute
	}
	m := &Memory{window: window}
	for i := range m.shards {
		m.shards[i].counters = make(map[string]*counter)
	}
	return m
}

func (m *Memory) shard(key string) *memoryShard {
	return &m.shards[shardIndex(key)]
}

func shardIndex(key string) int {
	const (
		fnvOffset32 = uint32(2166136261)
		fnvPrime32  = uint32(16777619)
	)
	h := fnvOffset32
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= fnvPrime32
	}
	return int(h % uint32(shardCount))
}

// Allow counts one arrival for key against limit. Limits of zero or less
// are treated as one.
func (m *Memory) Allow(key string, limit int) Decision {
	if limit <= 0 {
		limit = 1
	}

	now := time.Now()
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || now.After(c.resetAt) {
		c = &counter{resetAt: now.Add(m.window)}
		s.counters[key] = c
	}
	c.count++

	remaining := limit - c.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   c.count <= limit,
		Count:     c.count,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   c.resetAt,
	}
}

// Sweep evicts counters whose window has passed, across all shards.
// Called periodically by the janitor so that the hot Allow path is never
// burdened with map iteration.
func (m *Memory) Sweep() {
	now := time.Now()
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for k, c := range s.counters {
			if now.After(c.resetAt) {
				delete(s.counters, k)
			}
		}
		s.mu.Unlock()
	}
}
