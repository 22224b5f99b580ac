package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

func replaceTokens(tx *gorm.DB, userID uint, next *models.RefreshToken) error {
	if err := tx.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
		return err
	}
	next.UserID = userID
	return tx.Create(next).Error
}

// ReplaceRefreshTokens deletes every stored token of the user and inserts next.
func (r *GormRepo) ReplaceRefreshTokens(ctx context.Context, userID uint, next *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceTokens(tx, userID, next)
	})
}

// RotateRefreshToken swaps the token stored under oldHash for next and returns
// the owning user's id. Unknown, revoked and expired tokens yield ErrTokenNotUsable.
func (r *GormRepo) RotateRefreshToken(ctx context.Context, oldHash string, now time.Time, next *models.RefreshToken) (uint, error) {
	var userID uint
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.RefreshToken
		if err := tx.Where("token_hash = ?", oldHash).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenNotUsable
			}
			return err
		}
		if !current.Usable(now) {
			return ErrTokenNotUsable
		}
		userID = current.UserID
		return replaceTokens(tx, current.UserID, next)
	})
	if err != nil {
		return 0, err
	}
	return userID, nil
}

func (r *GormRepo) ListRefreshTokens(ctx context.Context, userID uint) ([]models.RefreshToken, error) {
	var out []models.RefreshToken
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
