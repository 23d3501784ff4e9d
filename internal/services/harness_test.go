package services

import (
	"go.uber.org/zap"

	"github.com/forumhub/chatcore/internal/models"
)

// testEnv wires every service against shared in-memory stores with two
// groups' worth of fixture data.
type testEnv struct {
	rooms     *fakeRoomStore
	messages  *fakeMessageStore
	cursors   *fakeCursorStore
	reactions *fakeReactionStore
	groups    *fakeMembership
	users     *fakeUserDirectory
	ids       *seqIDGen

	roomSvc     *RoomService
	messageSvc  *MessageService
	cursorSvc   *CursorService
	reactionSvc *ReactionService
}

var (
	alice = Identity{UserID: 1, Username: "alice"}
	bob   = Identity{UserID: 2, Username: "bob"}
	carol = Identity{UserID: 3, Username: "carol"}
	dave  = Identity{UserID: 4, Username: "dave"}
)

// newTestEnv builds the fixture: group 10 with alice as admin, bob and
// carol as members, dave outside. Room ids come back from provisioning.
func newTestEnv() *testEnv {
	env := &testEnv{
		rooms:     newFakeRoomStore(),
		messages:  newFakeMessageStore(),
		cursors:   newFakeCursorStore(),
		reactions: newFakeReactionStore(),
		groups:    newFakeMembership(),
		users: newFakeUserDirectory(
			models.User{ID: 1, Username: "alice", Nickname: "Alice"},
			models.User{ID: 2, Username: "bob", Nickname: "Bob"},
			models.User{ID: 3, Username: "carol", Nickname: "Carol"},
			models.User{ID: 4, Username: "dave", Nickname: "Dave"},
		),
		ids: &seqIDGen{},
	}
	env.groups.addMember(10, alice.UserID, true)
	env.groups.addMember(10, bob.UserID, false)
	env.groups.addMember(10, carol.UserID, false)

	logger := zap.NewNop()
	env.roomSvc = NewRoomService(env.rooms, env.groups, env.users, logger)
	env.messageSvc = NewMessageService(env.messages, env.cursors, env.reactions, env.roomSvc, env.rooms, env.groups, env.users, env.ids, logger)
	env.cursorSvc = NewCursorService(env.cursors, env.messages, env.roomSvc, logger)
	env.reactionSvc = NewReactionService(env.reactions, env.messages, env.roomSvc, logger)
	return env
}

// provisionGroupRooms creates the default rooms for group 10 and returns
// (generalID, adminID).
func (env *testEnv) provisionGroupRooms() (uint, uint) {
	if err := env.roomSvc.ProvisionDefaultRooms(10); err != nil {
		panic(err)
	}
	rooms, err := env.rooms.ListGroupRooms(10)
	if err != nil {
		panic(err)
	}
	var general, admin uint
	for _, r := range rooms {
		if r.IsGeneral {
			general = r.ID
		}
		if r.IsAdminRoom {
			admin = r.ID
		}
	}
	return general, admin
}

func (env *testEnv) sendText(caller Identity, room models.RoomRef, body string) *models.Message {
	msg, err := env.messageSvc.Append(caller, room, &AppendRequest{Kind: models.KindText, Body: body})
	if err != nil {
		panic(err)
	}
	return msg
}
