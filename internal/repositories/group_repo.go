package repositories

import (
	"errors"

	"gorm.io/gorm"

	"github.com/forumhub/chatcore/internal/errs"
	"github.com/forumhub/chatcore/internal/models"
)

// GroupRepository answers group membership and admin questions.
type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) GetByID(groupID uint) (*models.Group, error) {
	var group models.Group
	err := r.db.Where("id = ? AND is_deleted = ?", groupID, false).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Ef(errs.KindNotFound, "group %d not found", groupID)
		}
		return nil, errs.Wrap(errs.KindInternal, "failed to load group", err)
	}
	return &group, nil
}

// IsMember reports whether the user belongs to the group. The owner is a
// member whether or not a member row exists.
func (r *GroupRepository) IsMember(groupID, userID uint) (bool, error) {
	var n int64
	err := r.db.Model(&models.Group{}).
		Where("id = ? AND owner_id = ? AND is_deleted = ?", groupID, userID, false).
		Count(&n).Error
	if err != nil {
		return false, errs.Wrap(errs.KindInternal, "failed to check ownership", err)
	}
	if n > 0 {
		return true, nil
	}
	err = r.db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&n).Error
	if err != nil {
		return false, errs.Wrap(errs.KindInternal, "failed to check membership", err)
	}
	return n > 0, nil
}

// IsAdmin reports whether the user administers the group. The group owner
// is an admin whether or not a member row says so.
func (r *GroupRepository) IsAdmin(groupID, userID uint) (bool, error) {
	var group models.Group
	err := r.db.Where("id = ? AND is_deleted = ?", groupID, false).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, errs.Ef(errs.KindNotFound, "group %d not found", groupID)
		}
		return false, errs.Wrap(errs.KindInternal, "failed to load group", err)
	}
	if group.OwnerID == userID {
		return true, nil
	}
	var n int64
	err = r.db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ? AND is_admin = ?", groupID, userID, true).
		Count(&n).Error
	if err != nil {
		return false, errs.Wrap(errs.KindInternal, "failed to check admin", err)
	}
	return n > 0, nil
}

// MemberIDs returns the ids of every member of the group.
func (r *GroupRepository) MemberIDs(groupID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to list members", err)
	}
	return ids, nil
}
