package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterCooldown(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	limiter := &memoryLimiter{
		last:     make(map[string]time.Time),
		cooldown: 3 * time.Second,
		now:      func() time.Time { return now },
	}

	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok, "second submit inside the cooldown must be denied")

	// A denied call must not extend the cooldown.
	now = now.Add(3 * time.Second)
	ok, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryLimiterPerUser(t *testing.T) {
	limiter := NewMemoryLimiter(3 * time.Second)
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = limiter.Allow(ctx, "u2")
	require.NoError(t, err)
	require.True(t, ok, "cooldown is per user, not global")
}
