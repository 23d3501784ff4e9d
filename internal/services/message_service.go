package services

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/forumhub/chatcore/internal/errs"
	"github.com/forumhub/chatcore/internal/models"
	"github.com/forumhub/chatcore/internal/repositories"
)

const (
	maxBodyLen     = 5000
	defaultPerPage = 50
	maxPerPage     = 100
)

// RoomAuthorizer resolves a room and checks the caller may enter it.
// RoomService satisfies this.
type RoomAuthorizer interface {
	GetGroupRoomAuthorized(caller Identity, roomID uint) (*models.GroupRoom, error)
	GetDirectAuthorized(caller Identity, roomID uint) (*models.DirectRoom, error)
}

// MessageService appends, pages, searches and tombstones messages, and
// assembles the per-viewer message views.
type MessageService struct {
	messages  MessageStore
	cursors   CursorStore
	reactions ReactionStore
	rooms     RoomAuthorizer
	store     RoomStore
	groups    MembershipOracle
	users     UserDirectory
	ids       IDGenerator
	logger    *zap.Logger
}

func NewMessageService(
	messages MessageStore,
	cursors CursorStore,
	reactions ReactionStore,
	rooms RoomAuthorizer,
	store RoomStore,
	groups MembershipOracle,
	users UserDirectory,
	ids IDGenerator,
	logger *zap.Logger,
) *MessageService {
	return &MessageService{
		messages:  messages,
		cursors:   cursors,
		reactions: reactions,
		rooms:     rooms,
		store:     store,
		groups:    groups,
		users:     users,
		ids:       ids,
		logger:    logger,
	}
}

// AppendRequest carries the input for Append. Which fields are required
// depends on Kind.
type AppendRequest struct {
	Kind      models.MessageKind `json:"kind"`
	Body      string             `json:"body"`
	FileURL   string             `json:"file_url"`
	FileName  string             `json:"file_name"`
	FileSize  int64              `json:"file_size"`
	ReplyToID *int64             `json:"reply_to_id"`
}

// Append validates, authorizes and persists one message in the room,
// returning the stored row. The new id becomes the sender's read cursor so
// own messages never count as unread.
func (s *MessageService) Append(caller Identity, room models.RoomRef, req *AppendRequest) (*models.Message, error) {
	if err := s.authorizeRoom(caller, room); err != nil {
		return nil, err
	}

	if req.Kind == "" {
		req.Kind = models.KindText
	}
	message := &models.Message{
		RoomType: room.Type,
		RoomID:   room.ID,
		SenderID: caller.UserID,
		Kind:     req.Kind,
		State:    models.StateActive,
	}

	switch req.Kind {
	case models.KindText:
		body := strings.TrimSpace(req.Body)
		if body == "" {
			return nil, errs.E(errs.KindInvalidArgument, "text message requires a body")
		}
		if len(body) > maxBodyLen {
			return nil, errs.Ef(errs.KindInvalidArgument, "message body exceeds %d characters", maxBodyLen)
		}
		message.Body = &body
	case models.KindImage:
		if strings.TrimSpace(req.FileURL) == "" {
			return nil, errs.E(errs.KindInvalidArgument, "image message requires a file url")
		}
		url := strings.TrimSpace(req.FileURL)
		message.FileURL = &url
		if body := strings.TrimSpace(req.Body); body != "" {
			if len(body) > maxBodyLen {
				return nil, errs.Ef(errs.KindInvalidArgument, "message body exceeds %d characters", maxBodyLen)
			}
			message.Body = &body
		}
	case models.KindFile:
		url := strings.TrimSpace(req.FileURL)
		name := strings.TrimSpace(req.FileName)
		if url == "" || name == "" || req.FileSize <= 0 {
			return nil, errs.E(errs.KindInvalidArgument, "file message requires url, name and a positive size")
		}
		size := req.FileSize
		message.FileURL = &url
		message.FileName = &name
		message.FileSize = &size
	default:
		return nil, errs.Ef(errs.KindInvalidArgument, "unknown message kind %q", req.Kind)
	}

	if req.ReplyToID != nil {
		target, err := s.messages.GetByID(*req.ReplyToID)
		if err != nil {
			if errs.IsKind(err, errs.KindNotFound) {
				return nil, errs.E(errs.KindInvalidArgument, "reply target does not exist")
			}
			return nil, err
		}
		if target.Room() != room {
			return nil, errs.E(errs.KindInvalidArgument, "reply target is in a different room")
		}
		message.ReplyToID = req.ReplyToID
	}

	id, err := s.ids.Next()
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to allocate message id", err)
	}
	message.ID = id
	message.CreatedAt = time.Now()

	if err := s.messages.Create(message); err != nil {
		return nil, err
	}
	if err := s.cursors.Advance(room, caller.UserID, message.ID); err != nil {
		s.logger.Warn("failed to advance sender cursor",
			zap.Int64("message_id", message.ID), zap.Error(err))
	}
	if room.Type == models.RoomDirect {
		if err := s.store.TouchDirect(room.ID); err != nil {
			s.logger.Warn("failed to touch direct room",
				zap.Uint("room_id", room.ID), zap.Error(err))
		}
	}

	s.logger.Debug("message appended",
		zap.Int64("message_id", message.ID),
		zap.String("room_type", string(room.Type)),
		zap.Uint("room_id", room.ID),
		zap.Uint("sender_id", caller.UserID))
	return message, nil
}

// Delete tombstones a message. The sender may always delete their own
// message; in group rooms a group admin may delete anyone's.
// GetByID loads one message after verifying the caller may read its
// room. Tombstoned messages come back with their id intact.
func (s *MessageService) GetByID(caller Identity, messageID int64) (*models.Message, error) {
	msg, err := s.messages.GetByID(messageID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRoom(caller, msg.Room()); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MessageService) Delete(caller Identity, messageID int64) error {
	message, err := s.messages.GetByID(messageID)
	if err != nil {
		return err
	}
	if message.Deleted() {
		return errs.E(errs.KindConflict, "message is already deleted")
	}
	if message.SenderID != caller.UserID {
		allowed := false
		if message.RoomType == models.RoomGroup {
			room, err := s.store.GetGroupRoom(message.RoomID)
			if err != nil {
				return err
			}
			allowed, err = s.groups.IsAdmin(room.GroupID, caller.UserID)
			if err != nil {
				return err
			}
		}
		if !allowed {
			return errs.E(errs.KindForbidden, "cannot delete another user's message")
		}
	}
	if err := s.messages.SoftDelete(messageID); err != nil {
		return err
	}
	s.logger.Info("message deleted",
		zap.Int64("message_id", messageID),
		zap.Uint("by_user_id", caller.UserID))
	return nil
}

// SenderView is the profile slice embedded in message views.
type SenderView struct {
	ID              uint   `json:"id"`
	Username        string `json:"username"`
	Nickname        string `json:"nickname"`
	ProfileImageURL string `json:"profile_image_url"`
}

// GroupMessageView is one group-room message as a specific viewer sees it.
type GroupMessageView struct {
	ID            int64                     `json:"id"`
	RoomID        uint                      `json:"room_id"`
	Sender        SenderView                `json:"sender"`
	SenderIsAdmin bool                      `json:"sender_is_admin"`
	Kind          models.MessageKind        `json:"kind"`
	Body          string                    `json:"body"`
	FileURL       string                    `json:"file_url,omitempty"`
	FileName      string                    `json:"file_name,omitempty"`
	FileSize      int64                     `json:"file_size,omitempty"`
	ReplyToID     *int64                    `json:"reply_to_id,omitempty"`
	Reactions     []repositories.EmojiCount `json:"reactions"`
	MyReactions   []string                  `json:"my_reactions"`
	ReadCount     int64                     `json:"read_count"`
	CreatedAt     time.Time                 `json:"created_at"`
}

// GroupPage is one page of a group room's history.
type GroupPage struct {
	Messages []GroupMessageView `json:"messages"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PerPage  int                `json:"per_page"`
}

// PageGroupRoom returns one page of a group room in ascending order for
// the live view, and advances the caller's read cursor to the newest
// message on the first page. Viewing history marks it read.
func (s *MessageService) PageGroupRoom(caller Identity, roomID uint, page, perPage int) (*GroupPage, error) {
	room, err := s.rooms.GetGroupRoomAuthorized(caller, roomID)
	if err != nil {
		return nil, err
	}
	page, perPage = clampPage(page, perPage)
	ref := room.Ref()

	messages, total, err := s.messages.PageByRoom(ref, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	if page == 1 && len(messages) > 0 {
		if err := s.cursors.Advance(ref, caller.UserID, messages[0].ID); err != nil {
			s.logger.Warn("failed to advance cursor on view",
				zap.Uint("room_id", roomID), zap.Error(err))
		}
	}

	// the store pages newest-first; the live room view reads oldest-first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	views, err := s.assembleGroupViews(caller, room.GroupID, ref, messages)
	if err != nil {
		return nil, err
	}
	return &GroupPage{Messages: views, Total: total, Page: page, PerPage: perPage}, nil
}

func (s *MessageService) assembleGroupViews(caller Identity, groupID uint, ref models.RoomRef, messages []models.Message) ([]GroupMessageView, error) {
	ids := make([]int64, 0, len(messages))
	senderIDs := make([]uint, 0, len(messages))
	seen := make(map[uint]bool, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
		if !seen[m.SenderID] {
			seen[m.SenderID] = true
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	reactions, err := s.reactions.AggregateByMessageIDs(ids)
	if err != nil {
		return nil, err
	}
	mine, err := s.reactions.ViewerEmojis(ids, caller.UserID)
	if err != nil {
		return nil, err
	}
	senders, err := s.users.GetByIDs(senderIDs)
	if err != nil {
		return nil, err
	}
	adminBySender := make(map[uint]bool, len(senderIDs))
	for _, id := range senderIDs {
		admin, err := s.groups.IsAdmin(groupID, id)
		if err != nil {
			return nil, err
		}
		adminBySender[id] = admin
	}

	views := make([]GroupMessageView, 0, len(messages))
	for _, m := range messages {
		readCount, err := s.cursors.CountReaders(ref, m.ID, m.SenderID)
		if err != nil {
			return nil, err
		}
		view := GroupMessageView{
			ID:            m.ID,
			RoomID:        m.RoomID,
			Sender:        senderView(senders, m.SenderID),
			SenderIsAdmin: adminBySender[m.SenderID],
			Kind:          m.Kind,
			Body:          m.BodyText(),
			FileURL:       deref(m.FileURL),
			FileName:      deref(m.FileName),
			ReplyToID:     m.ReplyToID,
			Reactions:     reactions[m.ID],
			MyReactions:   mine[m.ID],
			ReadCount:     readCount,
			CreatedAt:     m.CreatedAt,
		}
		if m.FileSize != nil {
			view.FileSize = *m.FileSize
		}
		if view.Reactions == nil {
			view.Reactions = []repositories.EmojiCount{}
		}
		if view.MyReactions == nil {
			view.MyReactions = []string{}
		}
		views = append(views, view)
	}
	return views, nil
}

// DirectMessageView is one direct-room message as a specific viewer sees it.
// IsRead means the other participant's cursor has reached this message.
type DirectMessageView struct {
	ID        int64              `json:"id"`
	RoomID    uint               `json:"room_id"`
	Sender    SenderView         `json:"sender"`
	Kind      models.MessageKind `json:"kind"`
	Body      string             `json:"body"`
	FileURL   string             `json:"file_url,omitempty"`
	FileName  string             `json:"file_name,omitempty"`
	FileSize  int64              `json:"file_size,omitempty"`
	ReplyToID *int64             `json:"reply_to_id,omitempty"`
	IsRead    bool               `json:"is_read"`
	CreatedAt time.Time          `json:"created_at"`
}

// DirectPage is one page of a direct room's history.
type DirectPage struct {
	Messages []DirectMessageView `json:"messages"`
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PerPage  int                 `json:"per_page"`
}

// PageDirectRoom returns one page of a direct room, newest first, and
// advances the caller's cursor to the newest message on the first page.
func (s *MessageService) PageDirectRoom(caller Identity, roomID uint, page, perPage int) (*DirectPage, error) {
	room, err := s.rooms.GetDirectAuthorized(caller, roomID)
	if err != nil {
		return nil, err
	}
	page, perPage = clampPage(page, perPage)
	ref := room.Ref()

	messages, total, err := s.messages.PageByRoom(ref, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	if page == 1 && len(messages) > 0 {
		if err := s.cursors.Advance(ref, caller.UserID, messages[0].ID); err != nil {
			s.logger.Warn("failed to advance cursor on view",
				zap.Uint("room_id", roomID), zap.Error(err))
		}
	}

	otherCursor, err := s.cursors.Get(ref, room.OtherUserID(caller.UserID))
	if err != nil {
		return nil, err
	}
	senderIDs := []uint{room.UserAID, room.UserBID}
	senders, err := s.users.GetByIDs(senderIDs)
	if err != nil {
		return nil, err
	}

	views := make([]DirectMessageView, 0, len(messages))
	for _, m := range messages {
		view := DirectMessageView{
			ID:        m.ID,
			RoomID:    m.RoomID,
			Sender:    senderView(senders, m.SenderID),
			Kind:      m.Kind,
			Body:      m.BodyText(),
			FileURL:   deref(m.FileURL),
			FileName:  deref(m.FileName),
			ReplyToID: m.ReplyToID,
			IsRead:    otherCursor >= m.ID,
			CreatedAt: m.CreatedAt,
		}
		if m.FileSize != nil {
			view.FileSize = *m.FileSize
		}
		views = append(views, view)
	}
	return &DirectPage{Messages: views, Total: total, Page: page, PerPage: perPage}, nil
}

// DirectRoomView is one conversation in the caller's inbox.
type DirectRoomView struct {
	RoomID      uint       `json:"room_id"`
	OtherUser   SenderView `json:"other_user"`
	LastMessage string     `json:"last_message"`
	LastAt      *time.Time `json:"last_at,omitempty"`
	UnreadCount int64      `json:"unread_count"`
}

// ListDirectRooms assembles the caller's conversation list: other party,
// last message preview and unread count per room.
func (s *MessageService) ListDirectRooms(caller Identity) ([]DirectRoomView, error) {
	rooms, err := s.store.ListDirectByUser(caller.UserID)
	if err != nil {
		return nil, err
	}
	otherIDs := make([]uint, 0, len(rooms))
	for _, r := range rooms {
		otherIDs = append(otherIDs, r.OtherUserID(caller.UserID))
	}
	others, err := s.users.GetByIDs(otherIDs)
	if err != nil {
		return nil, err
	}

	views := make([]DirectRoomView, 0, len(rooms))
	for _, r := range rooms {
		ref := r.Ref()
		cursor, err := s.cursors.Get(ref, caller.UserID)
		if err != nil {
			return nil, err
		}
		unread, err := s.messages.CountAfter(ref, cursor, caller.UserID)
		if err != nil {
			return nil, err
		}
		view := DirectRoomView{
			RoomID:      r.ID,
			OtherUser:   senderView(others, r.OtherUserID(caller.UserID)),
			UnreadCount: unread,
		}
		latest, err := s.messages.LatestInRoom(ref)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			view.LastAt = &latest.CreatedAt
			view.LastMessage = preview(latest)
		}
		views = append(views, view)
	}
	return views, nil
}

// SearchPage is one page of search hits, newest first.
type SearchPage struct {
	Messages []models.Message `json:"messages"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PerPage  int              `json:"per_page"`
}

// Search pages through live text messages matching query in a room the
// caller may read.
func (s *MessageService) Search(caller Identity, room models.RoomRef, query string, page, perPage int) (*SearchPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.E(errs.KindInvalidArgument, "search query is required")
	}
	if err := s.authorizeRoom(caller, room); err != nil {
		return nil, err
	}
	page, perPage = clampPage(page, perPage)
	messages, total, err := s.messages.Search(room, query, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return &SearchPage{Messages: messages, Total: total, Page: page, PerPage: perPage}, nil
}

func (s *MessageService) authorizeRoom(caller Identity, room models.RoomRef) error {
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

func clampPage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func senderView(users map[uint]models.User, id uint) SenderView {
	u, ok := users[id]
	if !ok {
		return SenderView{ID: id}
	}
	return SenderView{
		ID:              u.ID,
		Username:        u.Username,
		Nickname:        u.Nickname,
		ProfileImageURL: u.ProfileImageURL,
	}
}

func preview(m *models.Message) string {
	if m.Deleted() {
		return ""
	}
	switch m.Kind {
	case models.KindImage:
		return "[image]"
	case models.KindFile:
		return "[file]"
	default:
		return m.BodyText()
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
