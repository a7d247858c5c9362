package server

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerboard/config"
)

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(val))

	now = now.Add(time.Minute)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCacheClear(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Clear(ctx))

	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	c := NewRedisCache(config.RedisConfig{Addr: addr})
	defer c.Close()
	ctx := context.Background()
	if err := c.Ping(ctx); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	require.NoError(t, c.Set(ctx, "/api/status", []byte("{}"), time.Minute))
	val, ok, err := c.Get(ctx, "/api/status")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "{}", string(val))

	require.NoError(t, c.Clear(ctx))
	_, ok, err = c.Get(ctx, "/api/status")
	require.NoError(t, err)
	assert.False(t, ok)
}
