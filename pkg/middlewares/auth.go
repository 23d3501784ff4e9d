// Package middlewares holds the gin middleware chain: authentication,
// per-user rate limiting and concurrency control.
package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/forumhub/chatcore/internal/services"
	"github.com/forumhub/chatcore/middleware/jwt"
)

const identityKey = "identity"

// TokenVerifier resolves a bearer token into claims. Satisfied by
// jwt.TokenManager; the indirection keeps credential issuance outside
// this service.
type TokenVerifier interface {
	ParseToken(token string) (*jwt.Claims, error)
}

// Auth verifies the caller's token and stores the resolved Identity on the
// context. The token comes from the Authorization header, or from the
// token query parameter for WebSocket upgrades where headers cannot be
// set by browser clients.
func Auth(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string

		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "UNAUTHENTICATED",
				"error": "missing authentication token",
			})
			return
		}

		claims, err := tokens.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "UNAUTHENTICATED",
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(identityKey, services.Identity{
			UserID:   claims.UserID,
			Username: claims.Username,
		})
		c.Next()
	}
}

// CallerIdentity returns the Identity stored by Auth.
func CallerIdentity(c *gin.Context) (services.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return services.Identity{}, false
	}
	id, ok := v.(services.Identity)
	return id, ok
}
