// Package ratelimit implements fixed-window rate limiting backed by Redis.
// Windows are keyed by caller identity, so limits hold across processes
// sharing the same Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter is the interface consumed by middleware.
type Limiter interface {
	// Allow reports whether one more request under key fits in the window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Reset clears the current window for a key.
	Reset(ctx context.Context, key string, window time.Duration) error

	// Remaining returns how many requests are left in the current window.
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

// WindowLimiter counts requests per fixed window with INCR + EXPIRE.
// When fallback is true the limiter fails open: Redis being unreachable
// never blocks traffic.
type WindowLimiter struct {
	client   *redis.Client
	logger   *zap.Logger
	fallback bool
}

func NewWindowLimiter(client *redis.Client, logger *zap.Logger, fallback bool) *WindowLimiter {
	return &WindowLimiter{
		client:   client,
		logger:   logger,
		fallback: fallback,
	}
}

func (l *WindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	bucketKey := l.bucketKey(key, time.Now(), window)

	pipe := l.client.Pipeline()
	incrCmd := pipe.Incr(ctx, bucketKey)
	pipe.Expire(ctx, bucketKey, window+time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		if l.fallback {
			l.logger.Warn("rate limit check failed, allowing request (fail-open)",
				zap.String("key", key),
				zap.Error(err),
			)
			return true, nil
		}
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := incrCmd.Val()
	allowed := count <= int64(limit)

	if !allowed {
		l.logger.Warn("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int("limit", limit),
			zap.Duration("window", window),
		)
	}

	return allowed, nil
}

func (l *WindowLimiter) Reset(ctx context.Context, key string, window time.Duration) error {
	now := time.Now()
	keys := []string{
		l.bucketKey(key, now, window),
		l.bucketKey(key, now.Add(-window), window),
	}
	if err := l.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit for key %s: %w", key, err)
	}
	return nil
}

func (l *WindowLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	bucketKey := l.bucketKey(key, time.Now(), window)

	count, err := l.client.Get(ctx, bucketKey).Int64()
	if err != nil {
		if err == redis.Nil {
			return limit, nil
		}
		return 0, fmt.Errorf("failed to get remaining tokens: %w", err)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (l *WindowLimiter) bucketKey(key string, at time.Time, window time.Duration) string {
	bucket := at.UnixNano() / int64(window)
	return fmt.Sprintf("ratelimit:%s:%d:%d", key, int64(window), bucket)
}
