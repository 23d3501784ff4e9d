package services

import (
	"go.uber.org/zap"

	"github.com/forumhub/chatcore/internal/errs"
	"github.com/forumhub/chatcore/internal/models"
)

// CursorService advances read cursors and derives unread and read-by
// figures from them.
type CursorService struct {
	cursors  CursorStore
	messages MessageStore
	rooms    RoomAuthorizer
	logger   *zap.Logger
}

func NewCursorService(cursors CursorStore, messages MessageStore, rooms RoomAuthorizer, logger *zap.Logger) *CursorService {
	return &CursorService{cursors: cursors, messages: messages, rooms: rooms, logger: logger}
}

// ReadReceipt is the outcome of MarkRead, broadcast to the room so other
// clients can update their read indicators.
type ReadReceipt struct {
	MessageID int64 `json:"message_id"`
	ReadCount int64 `json:"read_count"`
}

// MarkRead moves the caller's cursor in the room up to messageID. Stale
// acknowledgements are absorbed silently; the cursor never moves backwards.
// The returned receipt carries the message's resulting read count.
func (s *CursorService) MarkRead(caller Identity, room models.RoomRef, messageID int64) (*ReadReceipt, error) {
	if err := s.authorize(caller, room); err != nil {
		return nil, err
	}
	message, err := s.messages.GetByID(messageID)
	if err != nil {
		return nil, err
	}
	if message.Room() != room {
		return nil, errs.E(errs.KindInvalidArgument, "message does not belong to this room")
	}
	if err := s.cursors.Advance(room, caller.UserID, messageID); err != nil {
		return nil, err
	}
	readCount, err := s.cursors.CountReaders(room, messageID, message.SenderID)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("cursor advanced",
		zap.Int64("message_id", messageID),
		zap.Uint("user_id", caller.UserID),
		zap.Int64("read_count", readCount))
	return &ReadReceipt{MessageID: messageID, ReadCount: readCount}, nil
}

// UnreadCount returns how many messages from other users sit past the
// caller's cursor in the room.
func (s *CursorService) UnreadCount(caller Identity, room models.RoomRef) (int64, error) {
	if err := s.authorize(caller, room); err != nil {
		return 0, err
	}
	cursor, err := s.cursors.Get(room, caller.UserID)
	if err != nil {
		return 0, err
	}
	return s.messages.CountAfter(room, cursor, caller.UserID)
}

// IsRead reports whether readerID's cursor in the room has reached
// messageID.
func (s *CursorService) IsRead(room models.RoomRef, readerID uint, messageID int64) (bool, error) {
	cursor, err := s.cursors.Get(room, readerID)
	if err != nil {
		return false, err
	}
	return cursor >= messageID, nil
}

func (s *CursorService) authorize(caller Identity, room models.RoomRef) error {
	switch room.Type {
	case models.RoomGroup:
		_, err := s.rooms.GetGroupRoomAuthorized(caller, room.ID)
		return err
	case models.RoomDirect:
		_, err := s.rooms.GetDirectAuthorized(caller, room.ID)
		return err
	default:
		return errs.Ef(errs.KindInvalidArgument, "unknown room type %q", room.Type)
	}
}
