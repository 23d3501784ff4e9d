// Package ws is the WebSocket gateway: it authorizes connections, tracks
// topic subscriptions and fans frames out to subscribers.
package ws

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/forumhub/chatcore/internal/metrics"
)

// Hub routes frames to the clients subscribed to their topic. All state is
// owned by the Run loop; external callers talk to it through channels.
type Hub struct {
	clients map[*Client]bool

	// topic -> subscribers
	topics map[string]map[*Client]bool

	// userID -> that user's live connections, for private frames
	byUser map[uint]map[*Client]bool

	mu sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Frame

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		topics:     make(map[string]map[*Client]bool),
		byUser:     make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Frame, 256),
		logger:     logger,
	}
}

// Run owns the hub state until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			for _, topic := range client.topics {
				if h.topics[topic] == nil {
					h.topics[topic] = make(map[*Client]bool)
				}
				h.topics[topic][client] = true
			}
			if h.byUser[client.userID] == nil {
				h.byUser[client.userID] = make(map[*Client]bool)
			}
			h.byUser[client.userID][client] = true
			h.mu.Unlock()
			metrics.ActiveConnections.Inc()
			h.logger.Debug("client registered",
				zap.String("conn_id", client.id),
				zap.Uint("user_id", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case frame := <-h.broadcast:
			h.mu.Lock()
			var full []*Client
			for client := range h.topics[frame.Topic] {
				select {
				case client.send <- frame:
				default:
					full = append(full, client)
				}
			}
			// a subscriber that cannot keep up is dropped, not waited on
			for _, client := range full {
				h.drop(client)
				metrics.DroppedClients.Inc()
				h.logger.Warn("client dropped, send buffer full",
					zap.String("conn_id", client.id),
					zap.Uint("user_id", client.userID))
			}
			h.mu.Unlock()
			metrics.BroadcastsSent.WithLabelValues(frame.Type).Inc()
		}
	}
}

// drop removes the client from every index and closes its send channel.
// Caller holds mu.
func (h *Hub) drop(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	close(client.send)
	for _, topic := range client.topics {
		if subs := h.topics[topic]; subs != nil {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	if conns := h.byUser[client.userID]; conns != nil {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.byUser, client.userID)
		}
	}
	metrics.ActiveConnections.Dec()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.drop(client)
	}
}

// Broadcast fans a frame out to the topic's subscribers.
func (h *Hub) Broadcast(topic, frameType string, payload any) {
	h.broadcast <- &Frame{Topic: topic, Type: frameType, Payload: payload}
}

// SendToUser delivers a frame to every live connection of one user.
func (h *Hub) SendToUser(userID uint, frame *Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.byUser[userID] {
		select {
		case client.send <- frame:
		default:
		}
	}
}

// SubscriberCount reports how many clients follow a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
