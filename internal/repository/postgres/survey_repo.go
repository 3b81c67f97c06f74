package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
)

// SurveyRepo реализует repository.SurveyRepository
type SurveyRepo struct {
	db *gorm.DB
}

// NewSurveyRepo создает новый репозиторий опросов
func NewSurveyRepo(db *gorm.DB) *SurveyRepo {
	return &SurveyRepo{db: db}
}

// GetByID возвращает опрос по ID
func (r *SurveyRepo) GetByID(ctx context.Context, id int64) (*entity.Survey, error) {
	var survey entity.Survey
	if err := r.db.WithContext(ctx).First(&survey, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &survey, nil
}

// GetBySlug возвращает опрос по slug вместе с соревнованием
func (r *SurveyRepo) GetBySlug(ctx context.Context, slug string) (*entity.Survey, error) {
	var survey entity.Survey
	err := r.db.WithContext(ctx).
		Preload("Competition").
		Where("slug = ?", slug).
		First(&survey).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &survey, nil
}
