package ws

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(hub *Hub, userID uint, topic string, buffer int) *Client {
	return &Client{
		hub:       hub,
		send:      make(chan *Frame, buffer),
		id:        uuid.NewString(),
		userID:    userID,
		username:  "user",
		roomTopic: topic,
		topics:    []string{topic, TypingTopic(topic), ReadTopic(topic)},
	}
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	return hub, cancel
}

func waitForSubscribers(t *testing.T, hub *Hub, topic string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount(topic) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("topic %q never reached %d subscribers", topic, want)
}

func TestHub_BroadcastReachesTopicSubscribersOnly(t *testing.T) {
	hub, cancel := startHub(t)
	defer cancel()

	topicA := GroupTopic(1, 1)
	topicB := GroupTopic(1, 2)

	c1 := newTestClient(hub, 1, topicA, 8)
	c2 := newTestClient(hub, 2, topicA, 8)
	c3 := newTestClient(hub, 3, topicB, 8)
	hub.register <- c1
	hub.register <- c2
	hub.register <- c3
	waitForSubscribers(t, hub, topicA, 2)
	waitForSubscribers(t, hub, topicB, 1)

	hub.Broadcast(topicA, FrameMessage, "hello")

	for _, c := range []*Client{c1, c2} {
		select {
		case frame := <-c.send:
			assert.Equal(t, FrameMessage, frame.Type)
			assert.Equal(t, topicA, frame.Topic)
		case <-time.After(2 * time.Second):
			t.Fatal("subscriber did not receive frame")
		}
	}
	select {
	case <-c3.send:
		t.Fatal("client on another topic received the frame")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_TypingSideChannel(t *testing.T) {
	hub, cancel := startHub(t)
	defer cancel()

	topic := DirectTopic(7)
	c1 := newTestClient(hub, 1, topic, 8)
	hub.register <- c1
	waitForSubscribers(t, hub, TypingTopic(topic), 1)

	hub.Broadcast(TypingTopic(topic), FrameTyping, &TypingPayload{Username: "alice", IsTyping: true})

	select {
	case frame := <-c1.send:
		assert.Equal(t, FrameTyping, frame.Type)
		payload, ok := frame.Payload.(*TypingPayload)
		require.True(t, ok)
		assert.True(t, payload.IsTyping)
	case <-time.After(2 * time.Second):
		t.Fatal("typing frame not delivered")
	}
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	hub, cancel := startHub(t)
	defer cancel()

	topic := GroupTopic(1, 1)
	c1 := newTestClient(hub, 1, topic, 8)
	hub.register <- c1
	waitForSubscribers(t, hub, topic, 1)

	hub.unregister <- c1
	waitForSubscribers(t, hub, topic, 0)

	// send channel is closed on unregister
	_, open := <-c1.send
	assert.False(t, open)
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub, cancel := startHub(t)
	defer cancel()

	topic := GroupTopic(1, 1)
	slow := newTestClient(hub, 1, topic, 1)
	hub.register <- slow
	waitForSubscribers(t, hub, topic, 1)

	// first frame fills the buffer, second finds it full
	hub.Broadcast(topic, FrameMessage, "one")
	hub.Broadcast(topic, FrameMessage, "two")

	waitForSubscribers(t, hub, topic, 0)
}

func TestHub_SendToUserHitsAllConnections(t *testing.T) {
	hub, cancel := startHub(t)
	defer cancel()

	topic := GroupTopic(1, 1)
	c1 := newTestClient(hub, 42, topic, 8)
	c2 := newTestClient(hub, 42, DirectTopic(9), 8)
	other := newTestClient(hub, 7, topic, 8)
	hub.register <- c1
	hub.register <- c2
	hub.register <- other
	waitForSubscribers(t, hub, DirectTopic(9), 1)
	waitForSubscribers(t, hub, topic, 2)

	hub.SendToUser(42, &Frame{Type: FrameError, Payload: "private"})

	for _, c := range []*Client{c1, c2} {
		select {
		case frame := <-c.send:
			assert.Equal(t, FrameError, frame.Type)
		case <-time.After(2 * time.Second):
			t.Fatal("private frame not delivered")
		}
	}
	select {
	case <-other.send:
		t.Fatal("private frame leaked to another user")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTopicHelpers(t *testing.T) {
	assert.Equal(t, "chat/3/9", GroupTopic(3, 9))
	assert.Equal(t, "direct/12", DirectTopic(12))
	assert.Equal(t, "direct/12/typing", TypingTopic(DirectTopic(12)))
	assert.Equal(t, "chat/3/9/read", ReadTopic(GroupTopic(3, 9)))
}
