package models

import "time"

// RoomType distinguishes the two conversation topologies.
type RoomType string

const (
	RoomGroup  RoomType = "group"
	RoomDirect RoomType = "direct"
)

// RoomRef addresses a room of either topology.
type RoomRef struct {
	Type RoomType
	ID   uint
}

// GroupRoom is a chat room scoped to a community group. Two rooms (admin +
// general) are provisioned with the group; the general room can never be
// deleted. Deleted rooms stay on disk, never purged.
type GroupRoom struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	GroupID     uint      `gorm:"not null;index" json:"group_id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	IsAdminRoom bool      `gorm:"default:false" json:"is_admin_room"`
	IsGeneral   bool      `gorm:"default:false" json:"is_general"`
	IsDeleted   bool      `gorm:"default:false" json:"is_deleted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Group *Group `gorm:"foreignKey:GroupID" json:"-"`
}

func (GroupRoom) TableName() string {
	return "group_chat_rooms"
}

func (r *GroupRoom) Ref() RoomRef {
	return RoomRef{Type: RoomGroup, ID: r.ID}
}

// DirectRoom is an exactly-two-party conversation. The pair is stored
// normalized (UserAID < UserBID) so either initiator resolves to the same
// row; the uniqueIndex makes concurrent creation converge.
type DirectRoom struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserAID   uint      `gorm:"not null;uniqueIndex:idx_direct_pair" json:"user_a_id"`
	UserBID   uint      `gorm:"not null;uniqueIndex:idx_direct_pair" json:"user_b_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DirectRoom) TableName() string {
	return "direct_chat_rooms"
}

func (r *DirectRoom) Ref() RoomRef {
	return RoomRef{Type: RoomDirect, ID: r.ID}
}

// OtherUserID returns the participant that is not userID.
func (r *DirectRoom) OtherUserID(userID uint) uint {
	if r.UserAID == userID {
		return r.UserBID
	}
	return r.UserAID
}

// HasParticipant reports whether userID is one of the two parties.
func (r *DirectRoom) HasParticipant(userID uint) bool {
	return r.UserAID == userID || r.UserBID == userID
}

// NormalizePair maps an unordered user pair to its canonical (min,max) form.
func NormalizePair(a, b uint) (uint, uint) {
	if a < b {
		return a, b
	}
	return b, a
}
