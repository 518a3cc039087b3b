package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// windowScript atomically counts an arrival and stamps the window TTL on
// first touch, so every replica sharing the backend sees the same window.
var windowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// Redis is a fixed-window limiter backed by a shared Redis instance, for
// deployments running more than one replica. Backend errors degrade to a
// local in-memory window instead of failing requests.
type Redis struct {
	client   *redis.Client
	window   time.Duration
	prefix   string
	fallback *Memory
}

// NewRedis returns a Redis-backed limiter with a local fallback. A nil
// client is allowed and routes every decision through the fallback.
func NewRedis(client *redis.Client, window time.Duration) *Redis {
	if window <= 0 {
		window = time.Minute
	}
	return &Redis{
		client:   client,
		window:   window,
		prefix:   "gridhud:rl:",
		fallback: NewMemory(window),
	}
}

// Sweep evicts expired fallback counters. Redis keys expire on their own.
func (l *Redis) Sweep() {
	l.fallback.Sweep()
}

func (l *Redis) Allow(key string, limit int) Decision {
	if limit <= 0 {
		limit = 1
	}
	if l.client == nil {
		return l.fallback.Allow(key, limit)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := windowScript.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Result()
	if err != nil {
		return l.fallback.Allow(key, limit)
	}
	vals, ok := res.([]any)
	if !ok || len(vals) < 2 {
		return l.fallback.Allow(key, limit)
	}

	count, _ := vals[0].(int64)
	ttlMs, _ := vals[1].(int64)
	if ttlMs < 0 {
		ttlMs = l.window.Milliseconds()
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   int(count) <= limit,
		Count:     int(count),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(time.Duration(ttlMs) * time.Millisecond),
	}
}
