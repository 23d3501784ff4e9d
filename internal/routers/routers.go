package routers

import (
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forumhub/chatcore/internal/handlers"
	"github.com/forumhub/chatcore/internal/metrics"
	"github.com/forumhub/chatcore/internal/ws"
	"github.com/forumhub/chatcore/middleware/jwt"
	"github.com/forumhub/chatcore/pkg/middlewares"
	"github.com/forumhub/chatcore/utils/ratelimit"
)

// Deps carries everything the route table needs.
type Deps struct {
	Tokens      *jwt.TokenManager
	Rooms       *handlers.RoomHandler
	Messages    *handlers.MessageHandler
	Reactions   *handlers.ReactionHandler
	Gateway     *ws.Gateway
	SendLimiter ratelimit.Limiter

	SendPerMinute  int
	MaxConcurrency int

	Logger *zap.Logger
}

// Setup wires the route table. WebSocket routes register before the
// concurrency middleware so handshakes never queue behind HTTP traffic.
func Setup(r *gin.Engine, deps *Deps) {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsCfg))

	auth := middlewares.Auth(deps.Tokens)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	r.GET("/ws/chat/:group_id/:room_id", auth, func(c *gin.Context) {
		serveGroupWs(c, deps.Gateway)
	})
	r.GET("/ws/direct/:room_id", auth, func(c *gin.Context) {
		serveDirectWs(c, deps.Gateway)
	})

	if deps.MaxConcurrency > 0 {
		r.Use(middlewares.MaxConcurrency(deps.MaxConcurrency))
	}

	sendLimit := middlewares.SendRateLimit(deps.SendLimiter, deps.SendPerMinute, deps.Logger)

	api := r.Group("/api/v1", auth)
	{
		api.POST("/direct-rooms", deps.Rooms.OpenDirect)
		api.GET("/direct-rooms", deps.Rooms.ListDirect)
		api.GET("/direct-rooms/:room_id/messages", deps.Messages.PageDirectMessages)
		api.POST("/direct-rooms/:room_id/messages", sendLimit, deps.Messages.SendDirectMessage)

		api.GET("/groups/:group_id/rooms", deps.Rooms.ListGroupRooms)
		api.POST("/groups/:group_id/rooms", deps.Rooms.CreateGroupRoom)
		api.PUT("/group-rooms/:room_id", deps.Rooms.UpdateGroupRoom)
		api.DELETE("/group-rooms/:room_id", deps.Rooms.DeleteGroupRoom)
		api.GET("/group-rooms/:room_id/messages", deps.Messages.PageGroupMessages)
		api.POST("/group-rooms/:room_id/messages", sendLimit, deps.Messages.SendGroupMessage)

		api.DELETE("/messages/:message_id", deps.Messages.DeleteMessage)
		api.POST("/messages/:message_id/reactions", deps.Reactions.Toggle)
		api.GET("/messages/:message_id/reactions", deps.Reactions.Aggregate)

		api.POST("/chat/read", deps.Messages.MarkRead)
		api.GET("/chat/unread", deps.Messages.UnreadCount)
		api.GET("/chat/search", deps.Messages.Search)
	}
}

func serveGroupWs(c *gin.Context, gw *ws.Gateway) {
	id, ok := middlewares.CallerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	groupID, roomID, ok := wsParams(c)
	if !ok {
		return
	}
	gw.ServeGroupRoom(c, id, groupID, roomID)
}

func serveDirectWs(c *gin.Context, gw *ws.Gateway) {
	id, ok := middlewares.CallerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	_, roomID, ok := wsParams(c)
	if !ok {
		return
	}
	gw.ServeDirectRoom(c, id, roomID)
}

func wsParams(c *gin.Context) (groupID, roomID uint, ok bool) {
	parse := func(name string) (uint, bool) {
		raw := c.Param(name)
		if raw == "" {
			return 0, true
		}
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
			return 0, false
		}
		return uint(v), true
	}
	groupID, ok = parse("group_id")
	if !ok {
		return 0, 0, false
	}
	roomID, ok = parse("room_id")
	if !ok {
		return 0, 0, false
	}
	return groupID, roomID, true
}
