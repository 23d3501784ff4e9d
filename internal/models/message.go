package models

import "time"

// MessageKind is the payload shape of a message.
type MessageKind string

const (
	KindText  MessageKind = "TEXT"
	KindImage MessageKind = "IMAGE"
	KindFile  MessageKind = "FILE"
)

// MessageState is the lifecycle tag of a message. A deleted message keeps
// its row so its id stays a valid reply and cursor anchor.
type MessageState string

const (
	StateActive  MessageState = "active"
	StateDeleted MessageState = "deleted"
)

// Message is the append-only log entry shared by both room topologies.
// The snowflake ID is the sole ordering key; CreatedAt is display-only.
// Payload fields are immutable after creation; only State transitions,
// and only active -> deleted.
type Message struct {
	ID        int64        `gorm:"primaryKey" json:"id"`
	RoomType  RoomType     `gorm:"not null;index:idx_msg_room" json:"room_type"`
	RoomID    uint         `gorm:"not null;index:idx_msg_room" json:"room_id"`
	SenderID  uint         `gorm:"not null;index" json:"sender_id"`
	Kind      MessageKind  `gorm:"not null;default:TEXT" json:"kind"`
	Body      *string      `json:"body"`
	FileURL   *string      `json:"file_url"`
	FileName  *string      `json:"file_name"`
	FileSize  *int64       `json:"file_size"`
	ReplyToID *int64       `json:"reply_to_id"`
	State     MessageState `gorm:"not null;default:active" json:"state"`
	CreatedAt time.Time    `json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"-"`
}

func (Message) TableName() string {
	return "chat_messages"
}

func (m *Message) Room() RoomRef {
	return RoomRef{Type: m.RoomType, ID: m.RoomID}
}

// Deleted reports whether the message has been tombstoned.
func (m *Message) Deleted() bool {
	return m.State == StateDeleted
}

// BodyText returns the body or "" for pure attachments.
func (m *Message) BodyText() string {
	if m.Body == nil {
		return ""
	}
	return *m.Body
}

// ReadCursor holds a user's last-acknowledged message id in a room.
// LastReadID is zero until the first read; it advances monotonically and
// never regresses (enforced with GREATEST on upsert).
type ReadCursor struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RoomType   RoomType  `gorm:"not null;uniqueIndex:idx_cursor_room_user" json:"room_type"`
	RoomID     uint      `gorm:"not null;uniqueIndex:idx_cursor_room_user" json:"room_id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_cursor_room_user" json:"user_id"`
	LastReadID int64     `gorm:"not null;default:0" json:"last_read_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (ReadCursor) TableName() string {
	return "read_cursors"
}

// Reaction is a toggle-set membership: presence of the (message,user,emoji)
// triple is the only state. The uniqueIndex is the authoritative backstop
// against double-insert under races.
type Reaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID int64     `gorm:"not null;uniqueIndex:idx_reaction_triple" json:"message_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_reaction_triple" json:"user_id"`
	Emoji     string    `gorm:"not null;uniqueIndex:idx_reaction_triple;size:32" json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

func (Reaction) TableName() string {
	return "message_reactions"
}
