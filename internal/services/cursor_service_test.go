package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forumhub/chatcore/internal/errs"
	"github.com/forumhub/chatcore/internal/models"
)

func TestMarkRead_NeverRegresses(t *testing.T) {
	env := newTestEnv()
	general, _ := env.provisionGroupRooms()
	room := models.RoomRef{Type: models.RoomGroup, ID: general}

	older := env.sendText(alice, room, "older")
	newer := env.sendText(alice, room, "newer")

	_, err := env.cursorSvc.MarkRead(bob, room, newer.ID)
	require.NoError(t, err)

	// stale acknowledgement is absorbed, not an error
	_, err = env.cursorSvc.MarkRead(bob, room, older.ID)
	require.NoError(t, err)

	cursor, err := env.cursors.Get(room, bob.UserID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, cursor)
}

func TestMarkRead_ReturnsReadCount(t *testing.T) {
	env := newTestEnv()
	general, _ := env.provisionGroupRooms()
	room := models.RoomRef{Type: models.RoomGroup, ID: general}

	msg := env.sendText(alice, room, "count my readers")

	receipt, err := env.cursorSvc.MarkRead(bob, room, msg.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, receipt.ReadCount)

	receipt, err = env.cursorSvc.MarkRead(carol, room, msg.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, receipt.ReadCount)

	// the sender's own cursor never counts toward the total
	receipt, err = env.cursorSvc.MarkRead(alice, room, msg.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, receipt.ReadCount)
}

func TestMarkRead_WrongRoomRejected(t *testing.T) {
	env := newTestEnv()
	general, _ := env.provisionGroupRooms()
	generalRef := models.RoomRef{Type: models.RoomGroup, ID: general}

	dr, err := env.roomSvc.OpenDirect(alice, bob.UserID)
	require.NoError(t, err)

	msg := env.sendText(alice, dr.Ref(), "direct message")

	_, err = env.cursorSvc.MarkRead(bob, generalRef, msg.ID)
	assert.True(t, errs.IsKind(err, errs.KindInvalidArgument))
}

func TestMarkRead_Unauthorized(t *testing.T) {
	env := newTestEnv()
	general, _ := env.provisionGroupRooms()
	room := models.RoomRef{Type: models.RoomGroup, ID: general}

	msg := env.sendText(alice, room, "hello")

	_, err := env.cursorSvc.MarkRead(dave, room, msg.ID)
	assert.True(t, errs.IsKind(err, errs.KindForbidden))
}

func TestUnreadCount_ExcludesOwnMessages(t *testing.T) {
	env := newTestEnv()
	general, _ := env.provisionGroupRooms()
	room := models.RoomRef{Type: models.RoomGroup, ID: general}

	env.sendText(alice, room, "from alice")
	env.sendText(bob, room, "from bob")
	env.sendText(alice, room, "alice again")

	// bob's cursor advanced to his own send, so only alice's later message
	// counts
	unread, err := env.cursorSvc.UnreadCount(bob, room)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	// carol read nothing yet and did not write
	unread, err = env.cursorSvc.UnreadCount(carol, room)
	require.NoError(t, err)
	assert.EqualValues(t, 3, unread)
}

func TestIsRead(t *testing.T) {
	env := newTestEnv()
	dr, err := env.roomSvc.OpenDirect(alice, bob.UserID)
	require.NoError(t, err)
	room := dr.Ref()

	msg := env.sendText(alice, room, "check")

	read, err := env.cursorSvc.IsRead(room, bob.UserID, msg.ID)
	require.NoError(t, err)
	assert.False(t, read)

	_, err = env.cursorSvc.MarkRead(bob, room, msg.ID)
	require.NoError(t, err)

	read, err = env.cursorSvc.IsRead(room, bob.UserID, msg.ID)
	require.NoError(t, err)
	assert.True(t, read)
}
