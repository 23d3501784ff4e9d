package storage

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestPresence_OnlineOffline(t *testing.T) {
	client, _ := setupTestRedis(t)
	p := NewPresence(client)
	ctx := context.Background()

	online, err := p.IsOnline(ctx, 1)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, p.SetOnline(ctx, 1, time.Minute))

	online, err = p.IsOnline(ctx, 1)
	require.NoError(t, err)
	assert.True(t, online)

	online, err = p.IsOnline(ctx, 2)
	require.NoError(t, err)
	assert.False(t, online, "presence is per user")

	require.NoError(t, p.SetOffline(ctx, 1))

	online, err = p.IsOnline(ctx, 1)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestPresence_ExpiresWithoutRefresh(t *testing.T) {
	client, mr := setupTestRedis(t)
	p := NewPresence(client)
	ctx := context.Background()

	require.NoError(t, p.SetOnline(ctx, 7, time.Minute))

	mr.FastForward(2 * time.Minute)

	online, err := p.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.False(t, online, "stale presence should expire")
}

func TestPresence_AllowTyping(t *testing.T) {
	client, mr := setupTestRedis(t)
	p := NewPresence(client)
	ctx := context.Background()

	ok, err := p.AllowTyping(ctx, 1, "chat/1/2", 3*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.AllowTyping(ctx, 1, "chat/1/2", 3*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second notification inside the window is throttled")

	ok, err = p.AllowTyping(ctx, 1, "direct/9", 3*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "throttle is per room")

	ok, err = p.AllowTyping(ctx, 2, "chat/1/2", 3*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "throttle is per user")

	mr.FastForward(4 * time.Second)

	ok, err = p.AllowTyping(ctx, 1, "chat/1/2", 3*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "window elapsed")
}
