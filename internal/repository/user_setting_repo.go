package repository

import (
	"context"
	"errors"

	"cryptofolio/internal/model"

	"gorm.io/gorm"
)

type UserSettingRepository interface {
	// GetByUserID returns nil without error when the user has no settings row.
	GetByUserID(ctx context.Context, userID uint) (*model.UserSetting, error)
}

type userSettingRepository struct {
	db *gorm.DB
}

func NewUserSettingRepository(db *gorm.DB) UserSettingRepository {
	return &userSettingRepository{db: db}
}

func (r *userSettingRepository) GetByUserID(ctx context.Context, userID uint) (*model.UserSetting, error) {
	var setting model.UserSetting
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &setting, nil
}
