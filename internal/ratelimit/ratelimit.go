// Package ratelimit bounds how many messages a user may send per window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether key may perform one more action.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter counts actions per window in Redis so the limit holds across
// replicas.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
}

// NewRedisLimiter creates a new RedisLimiter.
func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: int64(limit), window: window}
}

// fixedWindow counts one attempt and starts the window only when the key has
// no TTL yet, so attempts inside a window never push its end out.
var fixedWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := fixedWindow.Run(ctx, l.rdb, []string{"rl:" + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n <= l.limit, nil
}

// MemoryLimiter keeps one token bucket per key in process. Buckets refill
// at limit per window with a burst of limit.
type MemoryLimiter struct {
	every rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewMemoryLimiter creates a new MemoryLimiter.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &MemoryLimiter{
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.every, l.burst)
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.Allow(), nil
}

// Unlimited allows everything.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }
