package repositories

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/forumhub/chatcore/internal/errs"
	"github.com/forumhub/chatcore/internal/models"
)

// ReactionRepository persists emoji reactions keyed by (message, user, emoji).
type ReactionRepository struct {
	db *gorm.DB
}

func NewReactionRepository(db *gorm.DB) *ReactionRepository {
	return &ReactionRepository{db: db}
}

func (r *ReactionRepository) Exists(messageID int64, userID uint, emoji string) (bool, error) {
	var n int64
	err := r.db.Model(&models.Reaction{}).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Count(&n).Error
	if err != nil {
		return false, errs.Wrap(errs.KindInternal, "failed to check reaction", err)
	}
	return n > 0, nil
}

// Insert adds a reaction. The unique index on the triple absorbs races
// between concurrent toggles of the same reaction.
func (r *ReactionRepository) Insert(messageID int64, userID uint, emoji string) error {
	reaction := models.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}
	err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&reaction).Error
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to add reaction", err)
	}
	return nil
}

func (r *ReactionRepository) Delete(messageID int64, userID uint, emoji string) error {
	err := r.db.Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&models.Reaction{}).Error
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to remove reaction", err)
	}
	return nil
}

// EmojiCount is one row of a reaction aggregate: an emoji and how many
// users reacted with it.
type EmojiCount struct {
	MessageID int64  `json:"-"`
	Emoji     string `json:"emoji"`
	Count     int64  `json:"count"`
}

// AggregateByMessageIDs returns per-emoji counts for a batch of messages
// in one query, keyed by message id.
func (r *ReactionRepository) AggregateByMessageIDs(messageIDs []int64) (map[int64][]EmojiCount, error) {
	out := make(map[int64][]EmojiCount, len(messageIDs))
	if len(messageIDs) == 0 {
		return out, nil
	}
	var rows []EmojiCount
	err := r.db.Model(&models.Reaction{}).
		Select("message_id, emoji, COUNT(*) AS count").
		Where("message_id IN ?", messageIDs).
		Group("message_id, emoji").
		Order("message_id, emoji").
		Scan(&rows).Error
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to aggregate reactions", err)
	}
	for _, row := range rows {
		out[row.MessageID] = append(out[row.MessageID], row)
	}
	return out, nil
}

// ViewerEmojis returns which emojis the viewer has placed on each of the
// given messages, keyed by message id.
func (r *ReactionRepository) ViewerEmojis(messageIDs []int64, userID uint) (map[int64][]string, error) {
	out := make(map[int64][]string, len(messageIDs))
	if len(messageIDs) == 0 {
		return out, nil
	}
	var rows []models.Reaction
	err := r.db.Where("message_id IN ? AND user_id = ?", messageIDs, userID).
		Order("message_id, emoji").
		Find(&rows).Error
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to load viewer reactions", err)
	}
	for _, row := range rows {
		out[row.MessageID] = append(out[row.MessageID], row.Emoji)
	}
	return out, nil
}
