package repositories

import (
	"errors"

	"gorm.io/gorm"

	"github.com/forumhub/chatcore/internal/errs"
	"github.com/forumhub/chatcore/internal/models"
)

// MessageRepository persists chat messages for both room types.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(message *models.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return errs.Wrap(errs.KindInternal, "failed to create message", err)
	}
	return nil
}

func (r *MessageRepository) GetByID(id int64) (*models.Message, error) {
	var message models.Message
	if err := r.db.First(&message, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Ef(errs.KindNotFound, "message %d not found", id)
		}
		return nil, errs.Wrap(errs.KindInternal, "failed to load message", err)
	}
	return &message, nil
}

// PageByRoom returns one page of a room's live messages ordered by id
// descending (newest first), plus the room's live message count. Deleted
// rows keep their ids as reply and cursor anchors but never page out.
func (r *MessageRepository) PageByRoom(room models.RoomRef, limit, offset int) ([]models.Message, int64, error) {
	var total int64
	base := r.db.Model(&models.Message{}).
		Where("room_type = ? AND room_id = ? AND state = ?", room.Type, room.ID, models.StateActive)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, errs.Wrap(errs.KindInternal, "failed to count messages", err)
	}

	var messages []models.Message
	err := r.db.Where("room_type = ? AND room_id = ? AND state = ?", room.Type, room.ID, models.StateActive).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, 0, errs.Wrap(errs.KindInternal, "failed to page messages", err)
	}
	return messages, total, nil
}

// Search pages through a room's live messages whose body matches the
// query, case-insensitively, newest first, plus the total match count.
func (r *MessageRepository) Search(room models.RoomRef, query string, limit, offset int) ([]models.Message, int64, error) {
	pattern := "%" + query + "%"

	var total int64
	err := r.db.Model(&models.Message{}).
		Where("room_type = ? AND room_id = ? AND state = ?", room.Type, room.ID, models.StateActive).
		Where("body ILIKE ?", pattern).
		Count(&total).Error
	if err != nil {
		return nil, 0, errs.Wrap(errs.KindInternal, "failed to count search matches", err)
	}

	var messages []models.Message
	err = r.db.Where("room_type = ? AND room_id = ? AND state = ?", room.Type, room.ID, models.StateActive).
		Where("body ILIKE ?", pattern).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, 0, errs.Wrap(errs.KindInternal, "failed to search messages", err)
	}
	return messages, total, nil
}

// SoftDelete blanks a message's content and flips its state. The row and
// its position in the room's order survive.
func (r *MessageRepository) SoftDelete(id int64) error {
	err := r.db.Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"state":     models.StateDeleted,
			"body":      nil,
			"file_url":  nil,
			"file_name": nil,
			"file_size": nil,
		}).Error
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to delete message", err)
	}
	return nil
}

// LatestInRoom returns the newest live message in a room, or nil when
// empty.
func (r *MessageRepository) LatestInRoom(room models.RoomRef) (*models.Message, error) {
	var message models.Message
	err := r.db.Where("room_type = ? AND room_id = ? AND state = ?", room.Type, room.ID, models.StateActive).
		Order("id DESC").
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindInternal, "failed to load latest message", err)
	}
	return &message, nil
}

// CountAfter counts live messages in a room with id greater than afterID
// that were not sent by userID. This is the unread count relative to a
// cursor.
func (r *MessageRepository) CountAfter(room models.RoomRef, afterID int64, userID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.Message{}).
		Where("room_type = ? AND room_id = ? AND state = ?", room.Type, room.ID, models.StateActive).
		Where("id > ? AND sender_id <> ?", afterID, userID).
		Count(&n).Error
	if err != nil {
		return 0, errs.Wrap(errs.KindInternal, "failed to count unread messages", err)
	}
	return n, nil
}
