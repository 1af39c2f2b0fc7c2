package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestAllowWithinWindow(t *testing.T) {
	client := newTestRedis(t)
	l := NewLimiter(client, nil)
	rule := MessageRule(3, time.Minute)
	id := uuid.NewString()
	ctx := context.Background()
	t.Cleanup(func() { client.Del(ctx, rule.Key+id) })

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, id, rule)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, err := l.Allow(ctx, id, rule)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := client.TTL(ctx, rule.Key+id).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestAllowFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	l := NewLimiter(client, nil)

	ok, err := l.Allow(context.Background(), "u1", MessageRule(1, time.Second))

	assert.True(t, ok)
	assert.Error(t, err)
}

func TestZeroLimitDisables(t *testing.T) {
	l := NewLimiter(nil, nil)

	ok, err := l.Allow(context.Background(), "u1", MessageRule(0, time.Second))

	assert.True(t, ok)
	assert.NoError(t, err)
}
