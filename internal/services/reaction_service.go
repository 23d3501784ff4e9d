package services

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/forumhub/chatcore/internal/errs"
	"github.com/forumhub/chatcore/internal/models"
	"github.com/forumhub/chatcore/internal/repositories"
)

const maxEmojiLen = 32

// ReactionService toggles emoji reactions on group-room messages and
// aggregates them for display.
type ReactionService struct {
	reactions ReactionStore
	messages  MessageStore
	rooms     RoomAuthorizer
	logger    *zap.Logger
}

func NewReactionService(reactions ReactionStore, messages MessageStore, rooms RoomAuthorizer, logger *zap.Logger) *ReactionService {
	return &ReactionService{reactions: reactions, messages: messages, rooms: rooms, logger: logger}
}

// ToggleResult reports the state of the reaction after Toggle.
type ToggleResult struct {
	MessageID int64  `json:"message_id"`
	Emoji     string `json:"emoji"`
	Reacted   bool   `json:"reacted"`
	Count     int64  `json:"count"`
}

// Toggle flips the caller's reaction on a message: present removes it,
// absent adds it. Reactions live on group-room messages only, and not on
// tombstones.
func (s *ReactionService) Toggle(caller Identity, messageID int64, emoji string) (*ToggleResult, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || utf8.RuneCountInString(emoji) > maxEmojiLen {
		return nil, errs.E(errs.KindInvalidArgument, "invalid reaction emoji")
	}
	message, err := s.messages.GetByID(messageID)
	if err != nil {
		return nil, err
	}
	if message.RoomType != models.RoomGroup {
		return nil, errs.E(errs.KindInvalidArgument, "reactions are only supported in group rooms")
	}
	if message.Deleted() {
		return nil, errs.E(errs.KindConflict, "cannot react to a deleted message")
	}
	if _, err := s.rooms.GetGroupRoomAuthorized(caller, message.RoomID); err != nil {
		return nil, err
	}

	exists, err := s.reactions.Exists(messageID, caller.UserID, emoji)
	if err != nil {
		return nil, err
	}
	if exists {
		err = s.reactions.Delete(messageID, caller.UserID, emoji)
	} else {
		err = s.reactions.Insert(messageID, caller.UserID, emoji)
	}
	if err != nil {
		return nil, err
	}

	count, err := s.countEmoji(messageID, emoji)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("reaction toggled",
		zap.Int64("message_id", messageID),
		zap.Uint("user_id", caller.UserID),
		zap.String("emoji", emoji),
		zap.Bool("reacted", !exists))
	return &ToggleResult{MessageID: messageID, Emoji: emoji, Reacted: !exists, Count: count}, nil
}

// Aggregate returns the per-emoji counts and the caller's own reactions
// for one message.
func (s *ReactionService) Aggregate(caller Identity, messageID int64) ([]repositories.EmojiCount, []string, error) {
	message, err := s.messages.GetByID(messageID)
	if err != nil {
		return nil, nil, err
	}
	if message.RoomType != models.RoomGroup {
		return nil, nil, errs.E(errs.KindInvalidArgument, "reactions are only supported in group rooms")
	}
	if _, err := s.rooms.GetGroupRoomAuthorized(caller, message.RoomID); err != nil {
		return nil, nil, err
	}
	all, err := s.reactions.AggregateByMessageIDs([]int64{messageID})
	if err != nil {
		return nil, nil, err
	}
	mine, err := s.reactions.ViewerEmojis([]int64{messageID}, caller.UserID)
	if err != nil {
		return nil, nil, err
	}
	counts := all[messageID]
	if counts == nil {
		counts = []repositories.EmojiCount{}
	}
	ours := mine[messageID]
	if ours == nil {
		ours = []string{}
	}
	return counts, ours, nil
}

func (s *ReactionService) countEmoji(messageID int64, emoji string) (int64, error) {
	all, err := s.reactions.AggregateByMessageIDs([]int64{messageID})
	if err != nil {
		return 0, err
	}
	for _, row := range all[messageID] {
		if row.Emoji == emoji {
			return row.Count, nil
		}
	}
	return 0, nil
}
