package storage

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Presence tracks which users currently hold a live gateway connection.
// Keys carry a TTL and are refreshed on every pong, so a crashed gateway
// leaks at most one TTL worth of stale presence.
type Presence struct {
	client *redis.Client
}

func NewPresence(client *redis.Client) *Presence {
	return &Presence{client: client}
}

func (p *Presence) SetOnline(ctx context.Context, userID uint, ttl time.Duration) error {
	key := presenceKey(userID)
	if err := p.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to set user %d online: %w", userID, err)
	}
	return nil
}

func (p *Presence) IsOnline(ctx context.Context, userID uint) (bool, error) {
	n, err := p.client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check user %d presence: %w", userID, err)
	}
	return n > 0, nil
}

func (p *Presence) SetOffline(ctx context.Context, userID uint) error {
	if err := p.client.Del(ctx, presenceKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear user %d presence: %w", userID, err)
	}
	return nil
}

// AllowTyping rate-limits typing notifications per user per room. It
// returns true when no notification went out within the window; SET NX
// with a TTL makes the check and the reservation one round trip.
func (p *Presence) AllowTyping(ctx context.Context, userID uint, topic string, window time.Duration) (bool, error) {
	key := fmt.Sprintf("typing:%d:%s", userID, topic)
	ok, err := p.client.SetNX(ctx, key, "1", window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve typing slot for user %d: %w", userID, err)
	}
	return ok, nil
}

func presenceKey(userID uint) string {
	return fmt.Sprintf("presence:user:%d", userID)
}
