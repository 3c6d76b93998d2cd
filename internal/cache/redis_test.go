package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewRedisStoreRequiresAddress(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{Address: "  "})
	require.EqualError(t, err, "redis: address is required")
}

func TestRedisStoreIncrement(t *testing.T) {
	addr := os.Getenv("ADBOARD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ADBOARD_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	store, err := NewRedisStore(ctx, RedisConfig{Address: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	key := "test:" + uuid.NewString()
	t.Cleanup(func() { _ = store.Delete(ctx, key) })

	count, ttl, err := store.IncrementWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Greater(t, ttl, 50*time.Second)

	count, _, err = store.IncrementWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}
