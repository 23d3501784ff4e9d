package repositories

import (
	"errors"

	"gorm.io/gorm"

	"github.com/forumhub/chatcore/internal/errs"
	"github.com/forumhub/chatcore/internal/models"
)

// UserRepository resolves user profiles for message and room views.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(userID uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Ef(errs.KindNotFound, "user %d not found", userID)
		}
		return nil, errs.Wrap(errs.KindInternal, "failed to load user", err)
	}
	return &user, nil
}

// GetByIDs loads a batch of users keyed by id. Missing ids are simply
// absent from the result.
func (r *UserRepository) GetByIDs(userIDs []uint) (map[uint]models.User, error) {
	out := make(map[uint]models.User, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var users []models.User
	if err := r.db.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to load users", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}
