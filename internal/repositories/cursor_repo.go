package repositories

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/forumhub/chatcore/internal/errs"
	"github.com/forumhub/chatcore/internal/models"
)

// CursorRepository persists per-user read cursors.
type CursorRepository struct {
	db *gorm.DB
}

func NewCursorRepository(db *gorm.DB) *CursorRepository {
	return &CursorRepository{db: db}
}

// Get returns the user's cursor in a room, or 0 when no cursor exists yet.
func (r *CursorRepository) Get(room models.RoomRef, userID uint) (int64, error) {
	var cursor models.ReadCursor
	err := r.db.Where("room_type = ? AND room_id = ? AND user_id = ?", room.Type, room.ID, userID).
		First(&cursor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, errs.Wrap(errs.KindInternal, "failed to load read cursor", err)
	}
	return cursor.LastReadID, nil
}

// Advance moves the cursor forward to messageID. The upsert takes the max
// of the stored and incoming values, so a stale client replaying an old
// read receipt can never move a cursor backwards.
func (r *CursorRepository) Advance(room models.RoomRef, userID uint, messageID int64) error {
	cursor := models.ReadCursor{
		RoomType:   room.Type,
		RoomID:     room.ID,
		UserID:     userID,
		LastReadID: messageID,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "room_type"}, {Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_read_id": gorm.Expr("GREATEST(read_cursors.last_read_id, excluded.last_read_id)"),
		}),
	}).Create(&cursor).Error
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to advance read cursor", err)
	}
	return nil
}

// CountReaders counts users other than senderID whose cursor in the room
// has reached messageID.
func (r *CursorRepository) CountReaders(room models.RoomRef, messageID int64, senderID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.ReadCursor{}).
		Where("room_type = ? AND room_id = ?", room.Type, room.ID).
		Where("last_read_id >= ? AND user_id <> ?", messageID, senderID).
		Count(&n).Error
	if err != nil {
		return 0, errs.Wrap(errs.KindInternal, "failed to count readers", err)
	}
	return n, nil
}
