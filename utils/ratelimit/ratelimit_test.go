package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestWindowLimiter_Allow(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewWindowLimiter(client, zap.NewNop(), false)
	ctx := context.Background()

	t.Run("allows up to the limit then rejects", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			ok, err := limiter.Allow(ctx, "user:1", 5, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "request %d should be allowed", i+1)
		}

		ok, err := limiter.Allow(ctx, "user:1", 5, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok, "sixth request should be rejected")
	})

	t.Run("keys are independent", func(t *testing.T) {
		ok, err := limiter.Allow(ctx, "user:2", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestWindowLimiter_Remaining(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewWindowLimiter(client, zap.NewNop(), false)
	ctx := context.Background()

	remaining, err := limiter.Remaining(ctx, "user:3", 10, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 10, remaining)

	for i := 0; i < 3; i++ {
		_, err := limiter.Allow(ctx, "user:3", 10, time.Minute)
		require.NoError(t, err)
	}

	remaining, err = limiter.Remaining(ctx, "user:3", 10, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 7, remaining)
}

func TestWindowLimiter_Reset(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewWindowLimiter(client, zap.NewNop(), false)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := limiter.Allow(ctx, "user:4", 4, time.Minute)
		require.NoError(t, err)
	}

	ok, err := limiter.Allow(ctx, "user:4", 4, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, limiter.Reset(ctx, "user:4", time.Minute))

	ok, err = limiter.Allow(ctx, "user:4", 4, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWindowLimiter_FailOpen(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	t.Run("fallback enabled allows when redis is down", func(t *testing.T) {
		limiter := NewWindowLimiter(client, zap.NewNop(), true)
		mr.Close()

		ok, err := limiter.Allow(ctx, "user:5", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("fallback disabled returns the error", func(t *testing.T) {
		limiter := NewWindowLimiter(client, zap.NewNop(), false)

		_, err := limiter.Allow(ctx, "user:6", 5, time.Minute)
		assert.Error(t, err)
	})
}
