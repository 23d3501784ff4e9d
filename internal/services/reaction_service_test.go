package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forumhub/chatcore/internal/errs"
	"github.com/forumhub/chatcore/internal/models"
)

func TestToggle_AddThenRemove(t *testing.T) {
	env := newTestEnv()
	general, _ := env.provisionGroupRooms()
	room := models.RoomRef{Type: models.RoomGroup, ID: general}

	msg := env.sendText(alice, room, "react to me")

	res, err := env.reactionSvc.Toggle(bob, msg.ID, "👍")
	require.NoError(t, err)
	assert.True(t, res.Reacted)
	assert.EqualValues(t, 1, res.Count)

	// second toggle of the same triple removes it
	res, err = env.reactionSvc.Toggle(bob, msg.ID, "👍")
	require.NoError(t, err)
	assert.False(t, res.Reacted)
	assert.Zero(t, res.Count)
}

func TestToggle_PerUserPerEmoji(t *testing.T) {
	env := newTestEnv()
	general, _ := env.provisionGroupRooms()
	room := models.RoomRef{Type: models.RoomGroup, ID: general}

	msg := env.sendText(alice, room, "popular")

	_, err := env.reactionSvc.Toggle(bob, msg.ID, "👍")
	require.NoError(t, err)
	_, err = env.reactionSvc.Toggle(carol, msg.ID, "👍")
	require.NoError(t, err)
	res, err := env.reactionSvc.Toggle(alice, msg.ID, "🎉")
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Count)

	counts, mine, err := env.reactionSvc.Aggregate(bob, msg.ID)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	// emoji ordering is lexicographic by code point
	assert.Equal(t, "🎉", counts[0].Emoji)
	assert.EqualValues(t, 1, counts[0].Count)
	assert.Equal(t, "👍", counts[1].Emoji)
	assert.EqualValues(t, 2, counts[1].Count)
	assert.Equal(t, []string{"👍"}, mine)
}

func TestToggle_GroupRoomsOnly(t *testing.T) {
	env := newTestEnv()
	dr, err := env.roomSvc.OpenDirect(alice, bob.UserID)
	require.NoError(t, err)

	msg := env.sendText(alice, dr.Ref(), "no reactions here")

	_, err = env.reactionSvc.Toggle(bob, msg.ID, "👍")
	assert.True(t, errs.IsKind(err, errs.KindInvalidArgument))
}

func TestToggle_DeletedMessage(t *testing.T) {
	env := newTestEnv()
	general, _ := env.provisionGroupRooms()
	room := models.RoomRef{Type: models.RoomGroup, ID: general}

	msg := env.sendText(alice, room, "going away")
	require.NoError(t, env.messageSvc.Delete(alice, msg.ID))

	_, err := env.reactionSvc.Toggle(bob, msg.ID, "👍")
	assert.True(t, errs.IsKind(err, errs.KindConflict))
}

func TestToggle_NonMemberForbidden(t *testing.T) {
	env := newTestEnv()
	general, _ := env.provisionGroupRooms()
	room := models.RoomRef{Type: models.RoomGroup, ID: general}

	msg := env.sendText(alice, room, "members only")

	_, err := env.reactionSvc.Toggle(dave, msg.ID, "👍")
	assert.True(t, errs.IsKind(err, errs.KindForbidden))
}

func TestToggle_InvalidEmoji(t *testing.T) {
	env := newTestEnv()
	general, _ := env.provisionGroupRooms()
	room := models.RoomRef{Type: models.RoomGroup, ID: general}

	msg := env.sendText(alice, room, "hello")

	_, err := env.reactionSvc.Toggle(bob, msg.ID, "   ")
	assert.True(t, errs.IsKind(err, errs.KindInvalidArgument))
}

func TestToggle_MissingMessage(t *testing.T) {
	env := newTestEnv()
	env.provisionGroupRooms()

	_, err := env.reactionSvc.Toggle(bob, 424242, "👍")
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}
