package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forumhub/chatcore/utils/ratelimit"
)

// SendRateLimit caps how many messages one user may send per minute. The
// key is the user id, so the cap follows the user across connections and
// instances.
func SendRateLimit(limiter ratelimit.Limiter, perMinute int, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerIdentity(c)
		if !ok {
			c.Next()
			return
		}
		key := fmt.Sprintf("send:%d", caller.UserID)
		allowed, err := limiter.Allow(c.Request.Context(), key, perMinute, time.Minute)
		if err != nil {
			logger.Warn("rate limiter error", zap.Uint("user_id", caller.UserID), zap.Error(err))
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":  "RATE_LIMITED",
				"error": "message rate limit exceeded, slow down",
			})
			return
		}
		c.Next()
	}
}

// MaxConcurrency bounds how many requests run at once. Beyond the bound
// requests are rejected immediately rather than queued, keeping memory flat
// under load spikes.
func MaxConcurrency(maxConcurrent int) gin.HandlerFunc {
	sem := make(chan struct{}, maxConcurrent)

	return func(c *gin.Context) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			c.Next()
		default:
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"code":  "OVERLOADED",
				"error": "too many concurrent requests",
			})
		}
	}
}
