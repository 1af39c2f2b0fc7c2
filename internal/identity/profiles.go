package identity

import (
	"context"
	"errors"

	"marketchat/backend/internal/common"
	"marketchat/backend/internal/models"

	"gorm.io/gorm"
)

// ProfileDirectory reads member profiles from the users table.
type ProfileDirectory struct {
	db *gorm.DB
}

func NewProfileDirectory(db *gorm.DB) *ProfileDirectory {
	return &ProfileDirectory{db: db}
}

// Profile returns the display profile of userID.
func (d *ProfileDirectory) Profile(ctx context.Context, userID int64) (models.Profile, error) {
	var user models.User
	err := d.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Profile{}, common.NotFound("user %d not found", userID)
	}
	if err != nil {
		return models.Profile{}, common.Internal(err, "load user %d", userID)
	}
	return models.Profile{
		UserID:          user.ID,
		DisplayName:     user.Nickname,
		ProfileImageURL: user.ProfileImageURL,
	}, nil
}
