package services

import (
	"strings"

	"go.uber.org/zap"

	"github.com/forumhub/chatcore/internal/errs"
	"github.com/forumhub/chatcore/internal/models"
)

// RoomService manages direct rooms and group rooms, including the
// authorization rules for entering them.
type RoomService struct {
	rooms  RoomStore
	groups MembershipOracle
	users  UserDirectory
	logger *zap.Logger
}

func NewRoomService(rooms RoomStore, groups MembershipOracle, users UserDirectory, logger *zap.Logger) *RoomService {
	return &RoomService{rooms: rooms, groups: groups, users: users, logger: logger}
}

// OpenDirect returns the direct room between the caller and otherUserID,
// creating it on first contact. Opening a conversation with yourself is
// rejected.
func (s *RoomService) OpenDirect(caller Identity, otherUserID uint) (*models.DirectRoom, error) {
	if otherUserID == caller.UserID {
		return nil, errs.E(errs.KindInvalidArgument, "cannot open a direct room with yourself")
	}
	if _, err := s.users.GetByID(otherUserID); err != nil {
		return nil, err
	}
	room, err := s.rooms.GetOrCreateDirect(caller.UserID, otherUserID)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("direct room opened",
		zap.Uint("room_id", room.ID),
		zap.Uint("user_id", caller.UserID),
		zap.Uint("other_user_id", otherUserID))
	return room, nil
}

// GetDirectAuthorized loads a direct room and verifies the caller is one
// of its two participants.
func (s *RoomService) GetDirectAuthorized(caller Identity, roomID uint) (*models.DirectRoom, error) {
	room, err := s.rooms.GetDirect(roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(caller.UserID) {
		return nil, errs.E(errs.KindForbidden, "not a participant of this conversation")
	}
	return room, nil
}

// ListDirect returns the caller's direct rooms, most recently active first.
func (s *RoomService) ListDirect(caller Identity) ([]models.DirectRoom, error) {
	return s.rooms.ListDirectByUser(caller.UserID)
}

// CreateGroupRoomRequest carries the input for CreateGroupRoom.
type CreateGroupRoomRequest struct {
	GroupID     uint   `json:"group_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateGroupRoom adds a named room to a group. Only group admins may
// create rooms.
func (s *RoomService) CreateGroupRoom(caller Identity, req *CreateGroupRoomRequest) (*models.GroupRoom, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errs.E(errs.KindInvalidArgument, "room name is required")
	}
	admin, err := s.groups.IsAdmin(req.GroupID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, errs.E(errs.KindForbidden, "only group admins can create rooms")
	}
	room := &models.GroupRoom{
		GroupID:     req.GroupID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
	}
	if err := s.rooms.CreateGroupRoom(room); err != nil {
		return nil, err
	}
	s.logger.Info("group room created",
		zap.Uint("group_id", req.GroupID),
		zap.Uint("room_id", room.ID),
		zap.String("name", room.Name))
	return room, nil
}

// ProvisionDefaultRooms creates the general and admin rooms for a newly
// created group.
func (s *RoomService) ProvisionDefaultRooms(groupID uint) error {
	return s.rooms.CreateDefaultRooms(groupID)
}

// isParticipant reports whether the user may enter the group at all.
// Admins count even without a membership row, so a group owner is never
// locked out of their own rooms.
func (s *RoomService) isParticipant(groupID, userID uint) (bool, error) {
	member, err := s.groups.IsMember(groupID, userID)
	if err != nil {
		return false, err
	}
	if member {
		return true, nil
	}
	return s.groups.IsAdmin(groupID, userID)
}

// ListGroupRooms returns the group's live rooms visible to the caller.
// Admin rooms are omitted for non-admin members.
func (s *RoomService) ListGroupRooms(caller Identity, groupID uint) ([]models.GroupRoom, error) {
	member, err := s.isParticipant(groupID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, errs.E(errs.KindForbidden, "not a member of this group")
	}
	rooms, err := s.rooms.ListGroupRooms(groupID)
	if err != nil {
		return nil, err
	}
	admin, err := s.groups.IsAdmin(groupID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if admin {
		return rooms, nil
	}
	visible := make([]models.GroupRoom, 0, len(rooms))
	for _, r := range rooms {
		if !r.IsAdminRoom {
			visible = append(visible, r)
		}
	}
	return visible, nil
}

// GetGroupRoomAuthorized loads a group room and verifies the caller may
// enter it: membership for ordinary rooms, admin for the admin room.
func (s *RoomService) GetGroupRoomAuthorized(caller Identity, roomID uint) (*models.GroupRoom, error) {
	room, err := s.rooms.GetGroupRoom(roomID)
	if err != nil {
		return nil, err
	}
	member, err := s.isParticipant(room.GroupID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, errs.E(errs.KindForbidden, "not a member of this group")
	}
	if room.IsAdminRoom {
		admin, err := s.groups.IsAdmin(room.GroupID, caller.UserID)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, errs.E(errs.KindForbidden, "admin room is restricted to group admins")
		}
	}
	return room, nil
}

// UpdateGroupRoomRequest carries the input for UpdateGroupRoom.
type UpdateGroupRoomRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// UpdateGroupRoom renames a room. Admin only; the general room keeps its
// name field editable like any other.
func (s *RoomService) UpdateGroupRoom(caller Identity, roomID uint, req *UpdateGroupRoomRequest) (*models.GroupRoom, error) {
	room, err := s.rooms.GetGroupRoom(roomID)
	if err != nil {
		return nil, err
	}
	admin, err := s.groups.IsAdmin(room.GroupID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, errs.E(errs.KindForbidden, "only group admins can update rooms")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errs.E(errs.KindInvalidArgument, "room name is required")
	}
	if err := s.rooms.UpdateGroupRoom(roomID, name, strings.TrimSpace(req.Description)); err != nil {
		return nil, err
	}
	return s.rooms.GetGroupRoom(roomID)
}

// DeleteGroupRoom soft-deletes a room. Admin only; the general and admin
// rooms can never be deleted.
func (s *RoomService) DeleteGroupRoom(caller Identity, roomID uint) error {
	room, err := s.rooms.GetGroupRoom(roomID)
	if err != nil {
		return err
	}
	admin, err := s.groups.IsAdmin(room.GroupID, caller.UserID)
	if err != nil {
		return err
	}
	if !admin {
		return errs.E(errs.KindForbidden, "only group admins can delete rooms")
	}
	if room.IsGeneral {
		return errs.E(errs.KindInvalidArgument, "the general room cannot be deleted")
	}
	if room.IsAdminRoom {
		return errs.E(errs.KindInvalidArgument, "the admin room cannot be deleted")
	}
	if err := s.rooms.SoftDeleteGroupRoom(roomID); err != nil {
		return err
	}
	s.logger.Info("group room deleted",
		zap.Uint("group_id", room.GroupID),
		zap.Uint("room_id", roomID))
	return nil
}
