package ratelimit

import (
	"context"
	"sync"
	"time"

	"voicereport-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Limiter answers whether one more request from a client fits under the
// fixed-window cap. Implementations must count atomically so concurrent
// requests cannot undercount.
type Limiter interface {
	Allow(ctx context.Context, clientKey string) (bool, error)
}

// RedisLimiter counts requests in Redis so the window survives restarts and
// is shared across replicas.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, prefix: "ratelimit:webhook:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	return utils.AllowFixedWindow(ctx, l.rdb, l.prefix+clientKey, l.limit, l.window)
}

// MemoryLimiter is the in-process fallback used when Redis is not configured.
// Per client it keeps the request timestamps inside the current window; each
// Allow does read-prune-append under the lock.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	history map[string][]time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		clock:   time.Now,
		history: map[string][]time.Time{},
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	now := l.clock()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := l.history[clientKey]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.history[clientKey] = kept
		return false, nil
	}

	l.history[clientKey] = append(kept, now)
	return true, nil
}
