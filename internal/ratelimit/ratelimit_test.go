package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i)
	}
	ok, err := l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Keys are independent.
	ok, err = l.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiterWindowIsFixed(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	l := NewRedisLimiter(rdb, 2, time.Second)
	allow := func() bool {
		t.Helper()
		ok, err := l.Allow(ctx, "u1")
		require.NoError(t, err)
		return ok
	}

	assert.True(t, allow())
	assert.True(t, allow())
	assert.False(t, allow())

	// A rejected attempt mid-window must not extend the window.
	mr.FastForward(600 * time.Millisecond)
	assert.False(t, allow())

	mr.FastForward(500 * time.Millisecond)
	assert.True(t, allow())
	assert.True(t, mr.TTL("rl:u1") > 0)
}

func TestUnlimited(t *testing.T) {
	ok, err := Unlimited{}.Allow(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ok)
}
