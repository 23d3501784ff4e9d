// Package services holds the domain logic for rooms, messages, read
// cursors and reactions. Services depend on narrow repository interfaces
// so tests can substitute in-memory fakes.
package services

import (
	"github.com/forumhub/chatcore/internal/models"
	"github.com/forumhub/chatcore/internal/repositories"
)

// Identity is the authenticated caller, resolved from a verified token
// before any service method runs.
type Identity struct {
	UserID   uint
	Username string
}

// MembershipOracle answers group membership and admin questions.
type MembershipOracle interface {
	IsMember(groupID, userID uint) (bool, error)
	IsAdmin(groupID, userID uint) (bool, error)
	MemberIDs(groupID uint) ([]uint, error)
}

// UserDirectory resolves user profiles for views.
type UserDirectory interface {
	GetByID(userID uint) (*models.User, error)
	GetByIDs(userIDs []uint) (map[uint]models.User, error)
}

// RoomStore is the persistence surface RoomService needs.
type RoomStore interface {
	GetOrCreateDirect(userA, userB uint) (*models.DirectRoom, error)
	GetDirect(roomID uint) (*models.DirectRoom, error)
	ListDirectByUser(userID uint) ([]models.DirectRoom, error)
	TouchDirect(roomID uint) error
	CreateGroupRoom(room *models.GroupRoom) error
	CreateDefaultRooms(groupID uint) error
	GetGroupRoom(roomID uint) (*models.GroupRoom, error)
	ListGroupRooms(groupID uint) ([]models.GroupRoom, error)
	UpdateGroupRoom(roomID uint, name, description string) error
	SoftDeleteGroupRoom(roomID uint) error
}

// MessageStore is the persistence surface MessageService needs.
type MessageStore interface {
	Create(message *models.Message) error
	GetByID(id int64) (*models.Message, error)
	PageByRoom(room models.RoomRef, limit, offset int) ([]models.Message, int64, error)
	Search(room models.RoomRef, query string, limit, offset int) ([]models.Message, int64, error)
	SoftDelete(id int64) error
	LatestInRoom(room models.RoomRef) (*models.Message, error)
	CountAfter(room models.RoomRef, afterID int64, userID uint) (int64, error)
}

// CursorStore is the persistence surface CursorService needs.
type CursorStore interface {
	Get(room models.RoomRef, userID uint) (int64, error)
	Advance(room models.RoomRef, userID uint, messageID int64) error
	CountReaders(room models.RoomRef, messageID int64, senderID uint) (int64, error)
}

// ReactionStore is the persistence surface ReactionService needs.
type ReactionStore interface {
	Exists(messageID int64, userID uint, emoji string) (bool, error)
	Insert(messageID int64, userID uint, emoji string) error
	Delete(messageID int64, userID uint, emoji string) error
	AggregateByMessageIDs(messageIDs []int64) (map[int64][]repositories.EmojiCount, error)
	ViewerEmojis(messageIDs []int64, userID uint) (map[int64][]string, error)
}

// IDGenerator mints the ordered message ids.
type IDGenerator interface {
	Next() (int64, error)
}
