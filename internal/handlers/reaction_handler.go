package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forumhub/chatcore/internal/metrics"
	"github.com/forumhub/chatcore/internal/services"
	"github.com/forumhub/chatcore/internal/ws"
)

// ReactionHandler toggles and reads reaction aggregates. Reactions are an
// HTTP-only surface; only the resulting aggregate is fanned out.
type ReactionHandler struct {
	reactions *services.ReactionService
	messages  *services.MessageService
	relay     *MessageHandler
}

func NewReactionHandler(reactions *services.ReactionService, messages *services.MessageService, relay *MessageHandler) *ReactionHandler {
	return &ReactionHandler{reactions: reactions, messages: messages, relay: relay}
}

type toggleRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// Toggle flips the caller's reaction and announces the new per-emoji count
// to the room.
func (h *ReactionHandler) Toggle(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	messageID, ok := int64Param(c, "message_id")
	if !ok {
		return
	}
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "emoji is required")
		return
	}
	result, err := h.reactions.Toggle(id, messageID, req.Emoji)
	if err != nil {
		fail(c, err)
		return
	}
	state := "removed"
	if result.Reacted {
		state = "added"
	}
	metrics.ReactionsToggled.WithLabelValues(state).Inc()

	if msg, err := h.messages.GetByID(id, messageID); err == nil {
		if topic, err := h.relay.topicFor(id, msg.Room()); err == nil {
			h.relay.publish(topic, ws.FrameReaction, result)
		}
	}
	c.JSON(http.StatusOK, result)
}

// Aggregate returns the per-emoji counts and the caller's applied emojis
// for one message.
func (h *ReactionHandler) Aggregate(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	messageID, ok := int64Param(c, "message_id")
	if !ok {
		return
	}
	counts, mine, err := h.reactions.Aggregate(id, messageID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reactions": counts, "my_reactions": mine})
}
