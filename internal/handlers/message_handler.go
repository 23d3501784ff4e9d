package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forumhub/chatcore/internal/metrics"
	"github.com/forumhub/chatcore/internal/models"
	"github.com/forumhub/chatcore/internal/services"
	"github.com/forumhub/chatcore/internal/utils"
	"github.com/forumhub/chatcore/internal/ws"
	"github.com/forumhub/chatcore/pkg/mq"
)

// MessageHandler serves the message surface: append, page, delete, search,
// read acknowledgements and unread counts. Mutations publish their fan-out
// event to the broker after the commit; with no broker configured the
// event goes straight to the local hub.
type MessageHandler struct {
	messages *services.MessageService
	cursors  *services.CursorService
	rooms    *services.RoomService
	hub      *ws.Hub
	producer *mq.Producer
	pool     *utils.WorkerPool
	logger   *zap.Logger
}

func NewMessageHandler(
	messages *services.MessageService,
	cursors *services.CursorService,
	rooms *services.RoomService,
	hub *ws.Hub,
	producer *mq.Producer,
	pool *utils.WorkerPool,
	logger *zap.Logger,
) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		cursors:  cursors,
		rooms:    rooms,
		hub:      hub,
		producer: producer,
		pool:     pool,
		logger:   logger,
	}
}

// publish fans an event out through the broker so every instance sees it,
// falling back to the local hub when no broker is configured. Store
// already committed; a publish failure is logged, never surfaced.
func (h *MessageHandler) publish(topic, frameType string, payload any) {
	if h.producer == nil {
		h.hub.Broadcast(topic, frameType, payload)
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode fan-out payload", zap.Error(err))
		return
	}
	event := &mq.Event{Topic: topic, Type: frameType, Payload: raw}
	job := func() {
		if err := h.producer.Publish(topic, event); err != nil {
			h.logger.Error("failed to publish fan-out event",
				zap.String("topic", topic), zap.Error(err))
		}
	}
	if h.pool != nil {
		h.pool.Submit(job)
	} else {
		go job()
	}
}

func (h *MessageHandler) topicFor(id services.Identity, room models.RoomRef) (string, error) {
	switch room.Type {
	case models.RoomGroup:
		gr, err := h.rooms.GetGroupRoomAuthorized(id, room.ID)
		if err != nil {
			return "", err
		}
		return ws.GroupTopic(gr.GroupID, gr.ID), nil
	default:
		return ws.DirectTopic(room.ID), nil
	}
}

func (h *MessageHandler) append(c *gin.Context, roomType models.RoomType) {
	id, ok := caller(c)
	if !ok {
		return
	}
	roomID, ok := uintParam(c, "room_id")
	if !ok {
		return
	}
	var req services.AppendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed message body")
		return
	}
	room := models.RoomRef{Type: roomType, ID: roomID}
	topic, err := h.topicFor(id, room)
	if err != nil {
		fail(c, err)
		return
	}
	msg, err := h.messages.Append(id, room, &req)
	if err != nil {
		fail(c, err)
		return
	}
	metrics.MessagesAppended.WithLabelValues(string(msg.RoomType), string(msg.Kind)).Inc()
	h.publish(topic, ws.FrameMessage, ws.NewMessagePayload(msg, id.Username))
	c.JSON(http.StatusCreated, msg)
}

// SendGroupMessage appends to a group room over HTTP.
func (h *MessageHandler) SendGroupMessage(c *gin.Context) {
	h.append(c, models.RoomGroup)
}

// SendDirectMessage appends to a direct room over HTTP.
func (h *MessageHandler) SendDirectMessage(c *gin.Context) {
	h.append(c, models.RoomDirect)
}

// PageGroupMessages returns one page of a group room's live view.
func (h *MessageHandler) PageGroupMessages(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	roomID, ok := uintParam(c, "room_id")
	if !ok {
		return
	}
	page, err := h.messages.PageGroupRoom(id, roomID, intQuery(c, "page", 1), intQuery(c, "per_page", 50))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// PageDirectMessages returns one page of a direct room's history.
func (h *MessageHandler) PageDirectMessages(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	roomID, ok := uintParam(c, "room_id")
	if !ok {
		return
	}
	page, err := h.messages.PageDirectRoom(id, roomID, intQuery(c, "page", 1), intQuery(c, "per_page", 50))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// DeleteMessage tombstones a message and announces the deletion to the
// room.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	messageID, ok := int64Param(c, "message_id")
	if !ok {
		return
	}
	msg, err := h.messages.GetByID(id, messageID)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.messages.Delete(id, messageID); err != nil {
		fail(c, err)
		return
	}
	metrics.MessagesDeleted.Inc()
	if topic, err := h.topicFor(id, msg.Room()); err == nil {
		h.publish(topic, ws.FrameDelete, gin.H{"message_id": messageID})
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type readRequest struct {
	RoomType  models.RoomType `json:"room_type" binding:"required"`
	RoomID    uint            `json:"room_id" binding:"required"`
	MessageID int64           `json:"message_id" binding:"required"`
}

// MarkRead advances the caller's cursor and announces the receipt on the
// room's read side channel.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req readRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "room_type, room_id and message_id are required")
		return
	}
	room := models.RoomRef{Type: req.RoomType, ID: req.RoomID}
	receipt, err := h.cursors.MarkRead(id, room, req.MessageID)
	if err != nil {
		fail(c, err)
		return
	}
	metrics.CursorsAdvanced.Inc()
	if topic, err := h.topicFor(id, room); err == nil {
		h.publish(ws.ReadTopic(topic), ws.FrameRead, &ws.ReadPayload{
			MessageID: receipt.MessageID,
			Username:  id.Username,
			ReadCount: receipt.ReadCount,
		})
	}
	c.JSON(http.StatusOK, receipt)
}

// UnreadCount reports how many messages sit past the caller's cursor.
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	room, ok := roomFromQuery(c)
	if !ok {
		return
	}
	n, err := h.cursors.UnreadCount(id, room)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

// Search pages through live text messages in one room.
func (h *MessageHandler) Search(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	room, ok := roomFromQuery(c)
	if !ok {
		return
	}
	page, err := h.messages.Search(id, room, c.Query("query"), intQuery(c, "page", 1), intQuery(c, "size", 50))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func roomFromQuery(c *gin.Context) (models.RoomRef, bool) {
	roomType := models.RoomType(c.Query("room_type"))
	if roomType != models.RoomGroup && roomType != models.RoomDirect {
		badRequest(c, "room_type must be group or direct")
		return models.RoomRef{}, false
	}
	roomID := intQuery(c, "room_id", 0)
	if roomID <= 0 {
		badRequest(c, "room_id is required")
		return models.RoomRef{}, false
	}
	return models.RoomRef{Type: roomType, ID: uint(roomID)}, true
}
