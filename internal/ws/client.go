package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/forumhub/chatcore/internal/errs"
	"github.com/forumhub/chatcore/internal/metrics"
	"github.com/forumhub/chatcore/internal/models"
	"github.com/forumhub/chatcore/internal/services"
	"github.com/forumhub/chatcore/internal/storage"
)

const (
	writeWait = 10 * time.Second

	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 8192

	sendBuffer = 256

	presenceTTL = pongWait + 15*time.Second

	typingWindow = 3 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Gateway builds authorized clients for the two room topologies.
type Gateway struct {
	hub      *Hub
	rooms    *services.RoomService
	messages *services.MessageService
	cursors  *services.CursorService
	presence *storage.Presence
	logger   *zap.Logger
}

func NewGateway(hub *Hub, rooms *services.RoomService, messages *services.MessageService, cursors *services.CursorService, presence *storage.Presence, logger *zap.Logger) *Gateway {
	return &Gateway{hub: hub, rooms: rooms, messages: messages, cursors: cursors, presence: presence, logger: logger}
}

// Client is one live WebSocket connection, bound to a single room.
type Client struct {
	gw   *Gateway
	hub  *Hub
	conn *websocket.Conn
	send chan *Frame

	id       string
	userID   uint
	username string

	room      models.RoomRef
	roomTopic string
	topics    []string
}

// incoming is the action frame clients write to the socket.
type incoming struct {
	Action string `json:"action"`

	// send
	Kind      models.MessageKind `json:"kind"`
	Body      string             `json:"body"`
	FileURL   string             `json:"file_url"`
	FileName  string             `json:"file_name"`
	FileSize  int64              `json:"file_size"`
	ReplyToID *int64             `json:"reply_to_id"`

	// read
	MessageID int64 `json:"message_id"`
}

// TypingPayload is the typing-indicator fan-out body.
type TypingPayload struct {
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

// ReadPayload is the read-receipt fan-out body.
type ReadPayload struct {
	MessageID int64  `json:"message_id"`
	Username  string `json:"username"`
	ReadCount int64  `json:"read_count"`
}

// MessagePayload is the message fan-out body, shared by WS and broker
// origin frames.
type MessagePayload struct {
	ID        int64              `json:"id"`
	RoomType  models.RoomType    `json:"room_type"`
	RoomID    uint               `json:"room_id"`
	SenderID  uint               `json:"sender_id"`
	Username  string             `json:"username"`
	Kind      models.MessageKind `json:"kind"`
	Body      string             `json:"body"`
	FileURL   string             `json:"file_url,omitempty"`
	FileName  string             `json:"file_name,omitempty"`
	FileSize  int64              `json:"file_size,omitempty"`
	ReplyToID *int64             `json:"reply_to_id,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// NewMessagePayload flattens a stored message for fan-out.
func NewMessagePayload(m *models.Message, username string) *MessagePayload {
	p := &MessagePayload{
		ID:        m.ID,
		RoomType:  m.RoomType,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Username:  username,
		Kind:      m.Kind,
		Body:      m.BodyText(),
		ReplyToID: m.ReplyToID,
		CreatedAt: m.CreatedAt,
	}
	if m.FileURL != nil {
		p.FileURL = *m.FileURL
	}
	if m.FileName != nil {
		p.FileName = *m.FileName
	}
	if m.FileSize != nil {
		p.FileSize = *m.FileSize
	}
	return p
}

// ServeGroupRoom upgrades a connection into a group room after checking
// the caller may enter it. Authorization happens before the upgrade so a
// rejected caller gets a plain HTTP status.
func (gw *Gateway) ServeGroupRoom(c *gin.Context, caller services.Identity, groupID, roomID uint) {
	room, err := gw.rooms.GetGroupRoomAuthorized(caller, roomID)
	if err != nil {
		c.JSON(errs.HTTPStatus(errs.KindOf(err)), gin.H{"error": errs.MessageOf(err)})
		return
	}
	if room.GroupID != groupID {
		c.JSON(http.StatusNotFound, gin.H{"error": "room does not belong to this group"})
		return
	}
	gw.serve(c, caller, room.Ref(), GroupTopic(groupID, roomID))
}

// ServeDirectRoom upgrades a connection into a direct room for one of its
// two participants.
func (gw *Gateway) ServeDirectRoom(c *gin.Context, caller services.Identity, roomID uint) {
	room, err := gw.rooms.GetDirectAuthorized(caller, roomID)
	if err != nil {
		c.JSON(errs.HTTPStatus(errs.KindOf(err)), gin.H{"error": errs.MessageOf(err)})
		return
	}
	gw.serve(c, caller, room.Ref(), DirectTopic(roomID))
}

func (gw *Gateway) serve(c *gin.Context, caller services.Identity, room models.RoomRef, topic string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		gw.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		gw:        gw,
		hub:       gw.hub,
		conn:      conn,
		send:      make(chan *Frame, sendBuffer),
		id:        uuid.NewString(),
		userID:    caller.UserID,
		username:  caller.Username,
		room:      room,
		roomTopic: topic,
		topics:    []string{topic, TypingTopic(topic), ReadTopic(topic)},
	}
	client.hub.register <- client

	if gw.presence != nil {
		if err := gw.presence.SetOnline(context.Background(), caller.UserID, presenceTTL); err != nil {
			gw.logger.Warn("failed to set presence", zap.Uint("user_id", caller.UserID), zap.Error(err))
		}
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		if c.gw.presence != nil {
			if err := c.gw.presence.SetOffline(context.Background(), c.userID); err != nil {
				c.gw.logger.Warn("failed to clear presence", zap.Uint("user_id", c.userID), zap.Error(err))
			}
		}
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if c.gw.presence != nil {
			go c.gw.presence.SetOnline(context.Background(), c.userID, presenceTTL)
		}
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.gw.logger.Debug("websocket read error",
					zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}

		var in incoming
		if err := json.Unmarshal(raw, &in); err != nil {
			c.sendError("malformed frame")
			continue
		}

		switch in.Action {
		case "send":
			c.handleSend(&in)
		case "typing/start":
			c.handleTyping(true)
		case "typing/stop":
			c.handleTyping(false)
		case "read":
			c.handleRead(in.MessageID)
		default:
			c.sendError("unknown action")
		}
	}
}

func (c *Client) handleSend(in *incoming) {
	caller := services.Identity{UserID: c.userID, Username: c.username}
	msg, err := c.gw.messages.Append(caller, c.room, &services.AppendRequest{
		Kind:      in.Kind,
		Body:      in.Body,
		FileURL:   in.FileURL,
		FileName:  in.FileName,
		FileSize:  in.FileSize,
		ReplyToID: in.ReplyToID,
	})
	if err != nil {
		c.sendError(errs.MessageOf(err))
		return
	}
	metrics.MessagesAppended.WithLabelValues(string(msg.RoomType), string(msg.Kind)).Inc()
	c.hub.Broadcast(c.roomTopic, FrameMessage, NewMessagePayload(msg, c.username))
}

// handleTyping broadcasts a typing notification on the room's typing
// sub-topic. Start notifications are throttled per user per room so a
// keystroke storm costs one frame per window; stop notifications always
// go through.
func (c *Client) handleTyping(isTyping bool) {
	if isTyping && c.gw.presence != nil {
		ok, err := c.gw.presence.AllowTyping(context.Background(), c.userID, c.roomTopic, typingWindow)
		if err == nil && !ok {
			return
		}
	}
	c.hub.Broadcast(TypingTopic(c.roomTopic), FrameTyping, &TypingPayload{
		Username: c.username,
		IsTyping: isTyping,
	})
}

// handleRead advances the cursor and announces the receipt. Failures are
// logged and swallowed; only send failures earn an error frame.
func (c *Client) handleRead(messageID int64) {
	caller := services.Identity{UserID: c.userID, Username: c.username}
	receipt, err := c.gw.cursors.MarkRead(caller, c.room, messageID)
	if err != nil {
		c.gw.logger.Debug("read ack rejected",
			zap.String("conn_id", c.id),
			zap.Int64("message_id", messageID),
			zap.Error(err))
		return
	}
	metrics.CursorsAdvanced.Inc()
	c.hub.Broadcast(ReadTopic(c.roomTopic), FrameRead, &ReadPayload{
		MessageID: receipt.MessageID,
		Username:  c.username,
		ReadCount: receipt.ReadCount,
	})
}

// sendError delivers a private error frame to this connection only.
func (c *Client) sendError(msg string) {
	select {
	case c.send <- &Frame{Topic: c.roomTopic, Type: FrameError, Payload: gin.H{"error": msg}}:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			json.NewEncoder(w).Encode(frame)

			// drain whatever else is queued into the same write
			n := len(c.send)
			for i := 0; i < n; i++ {
				json.NewEncoder(w).Encode(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
