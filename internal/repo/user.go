package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/hash"
	"github.com/Skotchmaster/storefront/internal/models"
)

func insertUser(tx *gorm.DB, u *models.User) error {
	var count int64
	if err := tx.Model(&models.User{}).
		Where("username = ? OR email = ?", u.Username, u.Email).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrUserAlreadyExist
	}
	if err := tx.Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserAlreadyExist
		}
		return err
	}
	return nil
}

// CreateUser inserts u unless its username or email is already taken.
func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertUser(tx, u)
	})
}

// RegisterUser inserts u together with its first refresh token. Either both
// rows are stored or neither is.
func (r *GormRepo) RegisterUser(ctx context.Context, u *models.User, token *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertUser(tx, u); err != nil {
			return err
		}
		return replaceTokens(tx, u.ID, token)
	})
}

// CheckCredentials returns ErrInvalidCredentials both for an unknown or inactive
// login and for a wrong password.
func (r *GormRepo) CheckCredentials(ctx context.Context, usernameOrEmail, password string) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).
		Where("(username = ? OR email = ?) AND is_active = ?", usernameOrEmail, usernameOrEmail, true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser hard-deletes the user. Refresh tokens go with it through the FK cascade.
func (r *GormRepo) DeleteUser(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
