package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forumhub/chatcore/internal/services"
)

type RoomHandler struct {
	rooms    *services.RoomService
	messages *services.MessageService
}

func NewRoomHandler(rooms *services.RoomService, messages *services.MessageService) *RoomHandler {
	return &RoomHandler{rooms: rooms, messages: messages}
}

type openDirectRequest struct {
	OtherUserID uint `json:"other_user_id" binding:"required"`
}

// OpenDirect resolves or creates the conversation with another user.
func (h *RoomHandler) OpenDirect(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req openDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "other_user_id is required")
		return
	}
	room, err := h.rooms.OpenDirect(id, req.OtherUserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// ListDirect returns the caller's conversation inbox.
func (h *RoomHandler) ListDirect(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	views, err := h.messages.ListDirectRooms(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": views})
}

// ListGroupRooms returns a group's rooms visible to the caller.
func (h *RoomHandler) ListGroupRooms(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	groupID, ok := uintParam(c, "group_id")
	if !ok {
		return
	}
	rooms, err := h.rooms.ListGroupRooms(id, groupID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// CreateGroupRoom adds a room to a group (admin only).
func (h *RoomHandler) CreateGroupRoom(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	groupID, ok := uintParam(c, "group_id")
	if !ok {
		return
	}
	var req services.CreateGroupRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}
	req.GroupID = groupID
	room, err := h.rooms.CreateGroupRoom(id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

// UpdateGroupRoom renames a room or changes its description (admin only).
func (h *RoomHandler) UpdateGroupRoom(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	roomID, ok := uintParam(c, "room_id")
	if !ok {
		return
	}
	var req services.UpdateGroupRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}
	room, err := h.rooms.UpdateGroupRoom(id, roomID, &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// DeleteGroupRoom soft-deletes a room (admin only, general room excluded).
func (h *RoomHandler) DeleteGroupRoom(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	roomID, ok := uintParam(c, "room_id")
	if !ok {
		return
	}
	if err := h.rooms.DeleteGroupRoom(id, roomID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
