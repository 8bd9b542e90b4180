// Package ratelimit guards the submission path with a per-user cooldown. The
// Redis limiter is shared across service instances, so the guard holds even
// when several replicas accept submissions for the same user.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Limiter interface {
	// Allow reports whether the user may submit now. A denied call does not
	// extend the cooldown.
	Allow(ctx context.Context, userID string) (bool, error)
}

type redisLimiter struct {
	rdb      *redis.Client
	cooldown time.Duration
}

func NewRedisLimiter(rdb *redis.Client, cooldown time.Duration) Limiter {
	return &redisLimiter{rdb: rdb, cooldown: cooldown}
}

func (l *redisLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	key := "submit_cooldown:" + userID
	ok, err := l.rdb.SetNX(ctx, key, 1, l.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("redisLimiter.Allow: %w", err)
	}
	return ok, nil
}

type memoryLimiter struct {
	mu       sync.Mutex
	last     map[string]time.Time
	cooldown time.Duration
	now      func() time.Time
}

// NewMemoryLimiter is a process-local fallback. It is advisory only under
// multiple instances; production wiring uses the Redis limiter.
func NewMemoryLimiter(cooldown time.Duration) Limiter {
	return &memoryLimiter{
		last:     make(map[string]time.Time),
		cooldown: cooldown,
		now:      time.Now,
	}
}

func (l *memoryLimiter) Allow(_ context.Context, userID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.last[userID]; ok && now.Sub(last) < l.cooldown {
		return false, nil
	}
	l.last[userID] = now
	return true, nil
}
