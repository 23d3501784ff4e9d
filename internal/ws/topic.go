package ws

import "fmt"

// Frame types fanned out to subscribers.
const (
	FrameMessage  = "MESSAGE"
	FrameTyping   = "TYPING"
	FrameRead     = "READ"
	FrameDelete   = "DELETE"
	FrameReaction = "REACTION"
	FrameError    = "ERROR"
)

// GroupTopic addresses a group room's message stream.
func GroupTopic(groupID, roomID uint) string {
	return fmt.Sprintf("chat/%d/%d", groupID, roomID)
}

// DirectTopic addresses a direct room's message stream.
func DirectTopic(roomID uint) string {
	return fmt.Sprintf("direct/%d", roomID)
}

// TypingTopic is the typing-indicator side channel of a room topic.
func TypingTopic(roomTopic string) string {
	return roomTopic + "/typing"
}

// ReadTopic is the read-receipt side channel of a room topic.
func ReadTopic(roomTopic string) string {
	return roomTopic + "/read"
}

// Frame is one unit of fan-out, addressed by topic.
type Frame struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}
