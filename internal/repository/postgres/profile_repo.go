package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
	apperrors "github.com/yourusername/pilotvoice-api/internal/pkg/errors"
)

// ProfileRepo реализует repository.ProfileRepository
type ProfileRepo struct {
	db *gorm.DB
}

// NewProfileRepo создает новый репозиторий профилей
func NewProfileRepo(db *gorm.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// GetByUserID возвращает профиль пользователя
func (r *ProfileRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*entity.Profile, error) {
	var profile entity.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &profile, nil
}

// Update обновляет переданные поля профиля
func (r *ProfileRepo) Update(ctx context.Context, userID uuid.UUID, fields map[string]interface{}) (*entity.Profile, error) {
	var profile entity.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fields) > 0 {
			result := tx.Model(&entity.Profile{}).Where("user_id = ?", userID).Updates(fields)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return apperrors.ErrNotFound
			}
		}
		return tx.Where("user_id = ?", userID).First(&profile).Error
	})
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &profile, nil
}
