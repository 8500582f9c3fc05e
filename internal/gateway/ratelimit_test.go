package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, limits Limits) (*RedisLimiter, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := NewRedisLimiter(client, "", limits)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestRedisLimiter_PerSecond(t *testing.T) {
	l, now := newLimiter(t, Limits{PerSecond: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "third send in the same second is denied")

	*now = now.Add(time.Second)
	ok, err = l.Allow(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "next second opens a new window")
}

func TestRedisLimiter_DeniedDoesNotConsume(t *testing.T) {
	l, now := newLimiter(t, Limits{PerSecond: 1, PerMinute: 2})
	ctx := context.Background()

	ok, _ := l.Allow(ctx)
	assert.True(t, ok)
	ok, _ = l.Allow(ctx) // denied by the second window
	assert.False(t, ok)

	*now = now.Add(time.Second)
	ok, _ = l.Allow(ctx)
	assert.True(t, ok, "denied call must not have counted against the minute window")

	*now = now.Add(time.Second)
	ok, _ = l.Allow(ctx)
	assert.False(t, ok, "minute window exhausted")
}

func TestRedisLimiter_Unlimited(t *testing.T) {
	l, _ := newLimiter(t, Limits{})
	for i := 0; i < 50; i++ {
		ok, err := l.Allow(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
	}
}
