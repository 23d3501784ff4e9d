package services

import (
	"sort"
	"strings"
	"sync"

	"github.com/forumhub/chatcore/internal/errs"
	"github.com/forumhub/chatcore/internal/models"
	"github.com/forumhub/chatcore/internal/repositories"
)

// In-memory store implementations backing the service tests.

type fakeRoomStore struct {
	mu         sync.Mutex
	nextID     uint
	direct     map[uint]*models.DirectRoom
	group      map[uint]*models.GroupRoom
	touchOrder []uint
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{
		nextID: 1,
		direct: make(map[uint]*models.DirectRoom),
		group:  make(map[uint]*models.GroupRoom),
	}
}

func (f *fakeRoomStore) GetOrCreateDirect(userA, userB uint) (*models.DirectRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, b := models.NormalizePair(userA, userB)
	for _, r := range f.direct {
		if r.UserAID == a && r.UserBID == b {
			return r, nil
		}
	}
	r := &models.DirectRoom{ID: f.nextID, UserAID: a, UserBID: b}
	f.nextID++
	f.direct[r.ID] = r
	return r, nil
}

func (f *fakeRoomStore) GetDirect(roomID uint) (*models.DirectRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.direct[roomID]
	if !ok {
		return nil, errs.Ef(errs.KindNotFound, "direct room %d not found", roomID)
	}
	return r, nil
}

func (f *fakeRoomStore) ListDirectByUser(userID uint) ([]models.DirectRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DirectRoom
	for _, r := range f.direct {
		if r.HasParticipant(userID) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRoomStore) TouchDirect(roomID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touchOrder = append(f.touchOrder, roomID)
	return nil
}

func (f *fakeRoomStore) CreateGroupRoom(room *models.GroupRoom) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room.ID = f.nextID
	f.nextID++
	f.group[room.ID] = room
	return nil
}

func (f *fakeRoomStore) CreateDefaultRooms(groupID uint) error {
	if err := f.CreateGroupRoom(&models.GroupRoom{GroupID: groupID, Name: "general", IsGeneral: true}); err != nil {
		return err
	}
	return f.CreateGroupRoom(&models.GroupRoom{GroupID: groupID, Name: "admin", IsAdminRoom: true})
}

func (f *fakeRoomStore) GetGroupRoom(roomID uint) (*models.GroupRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.group[roomID]
	if !ok || r.IsDeleted {
		return nil, errs.Ef(errs.KindNotFound, "group room %d not found", roomID)
	}
	return r, nil
}

func (f *fakeRoomStore) ListGroupRooms(groupID uint) ([]models.GroupRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.GroupRoom
	for _, r := range f.group {
		if r.GroupID == groupID && !r.IsDeleted {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRoomStore) UpdateGroupRoom(roomID uint, name, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.group[roomID]; ok {
		r.Name = name
		r.Description = description
	}
	return nil
}

func (f *fakeRoomStore) SoftDeleteGroupRoom(roomID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.group[roomID]; ok {
		r.IsDeleted = true
	}
	return nil
}

type fakeMessageStore struct {
	mu       sync.Mutex
	messages map[int64]*models.Message
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[int64]*models.Message)}
}

func (f *fakeMessageStore) Create(message *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *message
	f.messages[message.ID] = &cp
	return nil
}

func (f *fakeMessageStore) GetByID(id int64) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil, errs.Ef(errs.KindNotFound, "message %d not found", id)
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMessageStore) inRoom(room models.RoomRef) []models.Message {
	var out []models.Message
	for _, m := range f.messages {
		if m.Room() == room {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *fakeMessageStore) liveInRoom(room models.RoomRef) []models.Message {
	var out []models.Message
	for _, m := range f.inRoom(room) {
		if m.State == models.StateActive {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeMessageStore) PageByRoom(room models.RoomRef, limit, offset int) ([]models.Message, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.liveInRoom(room)
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (f *fakeMessageStore) Search(room models.RoomRef, query string, limit, offset int) ([]models.Message, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var hits []models.Message
	for _, m := range f.liveInRoom(room) {
		if strings.Contains(strings.ToLower(m.BodyText()), strings.ToLower(query)) {
			hits = append(hits, m)
		}
	}
	total := int64(len(hits))
	if offset >= len(hits) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	return hits[offset:end], total, nil
}

func (f *fakeMessageStore) SoftDelete(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[id]; ok {
		m.State = models.StateDeleted
		m.Body = nil
		m.FileURL = nil
		m.FileName = nil
		m.FileSize = nil
	}
	return nil
}

func (f *fakeMessageStore) LatestInRoom(room models.RoomRef) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.liveInRoom(room)
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}

func (f *fakeMessageStore) CountAfter(room models.RoomRef, afterID int64, userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.liveInRoom(room) {
		if m.ID > afterID && m.SenderID != userID {
			n++
		}
	}
	return n, nil
}

type cursorKey struct {
	room   models.RoomRef
	userID uint
}

type fakeCursorStore struct {
	mu      sync.Mutex
	cursors map[cursorKey]int64
}

func newFakeCursorStore() *fakeCursorStore {
	return &fakeCursorStore{cursors: make(map[cursorKey]int64)}
}

func (f *fakeCursorStore) Get(room models.RoomRef, userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursors[cursorKey{room, userID}], nil
}

func (f *fakeCursorStore) Advance(room models.RoomRef, userID uint, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := cursorKey{room, userID}
	if messageID > f.cursors[key] {
		f.cursors[key] = messageID
	}
	return nil
}

func (f *fakeCursorStore) CountReaders(room models.RoomRef, messageID int64, senderID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for key, last := range f.cursors {
		if key.room == room && key.userID != senderID && last >= messageID {
			n++
		}
	}
	return n, nil
}

type reactionKey struct {
	messageID int64
	userID    uint
	emoji     string
}

type fakeReactionStore struct {
	mu        sync.Mutex
	reactions map[reactionKey]bool
}

func newFakeReactionStore() *fakeReactionStore {
	return &fakeReactionStore{reactions: make(map[reactionKey]bool)}
}

func (f *fakeReactionStore) Exists(messageID int64, userID uint, emoji string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reactions[reactionKey{messageID, userID, emoji}], nil
}

func (f *fakeReactionStore) Insert(messageID int64, userID uint, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions[reactionKey{messageID, userID, emoji}] = true
	return nil
}

func (f *fakeReactionStore) Delete(messageID int64, userID uint, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reactions, reactionKey{messageID, userID, emoji})
	return nil
}

func (f *fakeReactionStore) AggregateByMessageIDs(messageIDs []int64) (map[int64][]repositories.EmojiCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[int64]map[string]int64)
	for key := range f.reactions {
		if counts[key.messageID] == nil {
			counts[key.messageID] = make(map[string]int64)
		}
		counts[key.messageID][key.emoji]++
	}
	out := make(map[int64][]repositories.EmojiCount, len(messageIDs))
	for _, id := range messageIDs {
		byEmoji := counts[id]
		if byEmoji == nil {
			continue
		}
		emojis := make([]string, 0, len(byEmoji))
		for e := range byEmoji {
			emojis = append(emojis, e)
		}
		sort.Strings(emojis)
		for _, e := range emojis {
			out[id] = append(out[id], repositories.EmojiCount{MessageID: id, Emoji: e, Count: byEmoji[e]})
		}
	}
	return out, nil
}

func (f *fakeReactionStore) ViewerEmojis(messageIDs []int64, userID uint) (map[int64][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64][]string)
	for _, id := range messageIDs {
		var emojis []string
		for key := range f.reactions {
			if key.messageID == id && key.userID == userID {
				emojis = append(emojis, key.emoji)
			}
		}
		if emojis != nil {
			sort.Strings(emojis)
			out[id] = emojis
		}
	}
	return out, nil
}

type fakeMembership struct {
	members map[uint]map[uint]bool
	admins  map[uint]map[uint]bool
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{
		members: make(map[uint]map[uint]bool),
		admins:  make(map[uint]map[uint]bool),
	}
}

func (f *fakeMembership) addMember(groupID, userID uint, admin bool) {
	if f.members[groupID] == nil {
		f.members[groupID] = make(map[uint]bool)
	}
	f.members[groupID][userID] = true
	if admin {
		if f.admins[groupID] == nil {
			f.admins[groupID] = make(map[uint]bool)
		}
		f.admins[groupID][userID] = true
	}
}

// setAdminOnly marks a user as an admin with no member row, the way a
// group owner appears when they never joined explicitly.
func (f *fakeMembership) setAdminOnly(groupID, userID uint) {
	if f.admins[groupID] == nil {
		f.admins[groupID] = make(map[uint]bool)
	}
	f.admins[groupID][userID] = true
}

func (f *fakeMembership) IsMember(groupID, userID uint) (bool, error) {
	return f.members[groupID][userID], nil
}

func (f *fakeMembership) IsAdmin(groupID, userID uint) (bool, error) {
	return f.admins[groupID][userID], nil
}

func (f *fakeMembership) MemberIDs(groupID uint) ([]uint, error) {
	var out []uint
	for id := range f.members[groupID] {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

type fakeUserDirectory struct {
	users map[uint]models.User
}

func newFakeUserDirectory(users ...models.User) *fakeUserDirectory {
	d := &fakeUserDirectory{users: make(map[uint]models.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (f *fakeUserDirectory) GetByID(userID uint) (*models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, errs.Ef(errs.KindNotFound, "user %d not found", userID)
	}
	return &u, nil
}

func (f *fakeUserDirectory) GetByIDs(userIDs []uint) (map[uint]models.User, error) {
	out := make(map[uint]models.User, len(userIDs))
	for _, id := range userIDs {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type seqIDGen struct {
	mu   sync.Mutex
	next int64
}

func (g *seqIDGen) Next() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return g.next, nil
}
