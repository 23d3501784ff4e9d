package repositories

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/forumhub/chatcore/internal/errs"
	"github.com/forumhub/chatcore/internal/models"
)

// RoomRepository persists group chat rooms and direct chat rooms.
type RoomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// GetOrCreateDirect returns the direct room for the canonical user pair,
// creating it if absent. Concurrent callers for the same pair converge on
// one row through the unique index on (user_a_id, user_b_id).
func (r *RoomRepository) GetOrCreateDirect(userA, userB uint) (*models.DirectRoom, error) {
	a, b := models.NormalizePair(userA, userB)
	room := &models.DirectRoom{UserAID: a, UserBID: b}

	err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(room).Error
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to create direct room", err)
	}
	// On conflict gorm leaves the struct without its ID, so always refetch.
	var out models.DirectRoom
	if err := r.db.Where("user_a_id = ? AND user_b_id = ?", a, b).First(&out).Error; err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to load direct room", err)
	}
	return &out, nil
}

// GetDirect loads a direct room by id.
func (r *RoomRepository) GetDirect(roomID uint) (*models.DirectRoom, error) {
	var room models.DirectRoom
	if err := r.db.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Ef(errs.KindNotFound, "direct room %d not found", roomID)
		}
		return nil, errs.Wrap(errs.KindInternal, "failed to load direct room", err)
	}
	return &room, nil
}

// ListDirectByUser returns every direct room the user participates in,
// most recently active first.
func (r *RoomRepository) ListDirectByUser(userID uint) ([]models.DirectRoom, error) {
	var rooms []models.DirectRoom
	err := r.db.Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to list direct rooms", err)
	}
	return rooms, nil
}

// TouchDirect bumps the room's updated_at so its conversation list sorts
// by latest activity.
func (r *RoomRepository) TouchDirect(roomID uint) error {
	err := r.db.Model(&models.DirectRoom{}).
		Where("id = ?", roomID).
		Update("updated_at", gorm.Expr("NOW()")).Error
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to touch direct room", err)
	}
	return nil
}

// CreateGroupRoom adds a named room to a group.
func (r *RoomRepository) CreateGroupRoom(room *models.GroupRoom) error {
	if err := r.db.Create(room).Error; err != nil {
		return errs.Wrap(errs.KindInternal, "failed to create group room", err)
	}
	return nil
}

// CreateDefaultRooms creates the general and admin rooms for a new group
// in one transaction.
func (r *RoomRepository) CreateDefaultRooms(groupID uint) error {
	rooms := []models.GroupRoom{
		{GroupID: groupID, Name: "general", Description: "General discussion", IsGeneral: true},
		{GroupID: groupID, Name: "admin", Description: "Admins only", IsAdminRoom: true},
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		for i := range rooms {
			if err := tx.Create(&rooms[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to create default rooms", err)
	}
	return nil
}

// GetGroupRoom loads a live group room by id.
func (r *RoomRepository) GetGroupRoom(roomID uint) (*models.GroupRoom, error) {
	var room models.GroupRoom
	err := r.db.Where("id = ? AND is_deleted = ?", roomID, false).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Ef(errs.KindNotFound, "group room %d not found", roomID)
		}
		return nil, errs.Wrap(errs.KindInternal, "failed to load group room", err)
	}
	return &room, nil
}

// ListGroupRooms returns a group's live rooms in creation order.
func (r *RoomRepository) ListGroupRooms(groupID uint) ([]models.GroupRoom, error) {
	var rooms []models.GroupRoom
	err := r.db.Where("group_id = ? AND is_deleted = ?", groupID, false).
		Order("id ASC").
		Find(&rooms).Error
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to list group rooms", err)
	}
	return rooms, nil
}

// UpdateGroupRoom renames a room or changes its description.
func (r *RoomRepository) UpdateGroupRoom(roomID uint, name, description string) error {
	err := r.db.Model(&models.GroupRoom{}).
		Where("id = ? AND is_deleted = ?", roomID, false).
		Updates(map[string]any{"name": name, "description": description}).Error
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to update group room", err)
	}
	return nil
}

// SoftDeleteGroupRoom marks a room deleted without dropping its history.
func (r *RoomRepository) SoftDeleteGroupRoom(roomID uint) error {
	err := r.db.Model(&models.GroupRoom{}).
		Where("id = ?", roomID).
		Update("is_deleted", true).Error
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to delete group room", err)
	}
	return nil
}
