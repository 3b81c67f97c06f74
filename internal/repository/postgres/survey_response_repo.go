package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
	"github.com/yourusername/pilotvoice-api/internal/domain/repository"
	apperrors "github.com/yourusername/pilotvoice-api/internal/pkg/errors"
)

// SurveyResponseRepo реализует repository.SurveyResponseRepository
type SurveyResponseRepo struct {
	db *gorm.DB
}

// NewSurveyResponseRepo создает новый репозиторий ответов на опросы
func NewSurveyResponseRepo(db *gorm.DB) *SurveyResponseRepo {
	return &SurveyResponseRepo{db: db}
}

// GetByID возвращает ответ по ID
func (r *SurveyResponseRepo) GetByID(ctx context.Context, id int64) (*entity.SurveyResponse, error) {
	var response entity.SurveyResponse
	if err := r.db.WithContext(ctx).First(&response, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &response, nil
}

// FindBySurveyAndUser возвращает ответ пользователя на опрос
func (r *SurveyResponseRepo) FindBySurveyAndUser(ctx context.Context, surveyID int64, userID uuid.UUID) (*entity.SurveyResponse, error) {
	var response entity.SurveyResponse
	err := r.db.WithContext(ctx).
		Where("survey_id = ? AND user_id = ?", surveyID, userID).
		First(&response).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &response, nil
}

// Create вставляет новый ответ. Уникальность (survey_id, user_id) обеспечивает индекс БД.
func (r *SurveyResponseRepo) Create(ctx context.Context, response *entity.SurveyResponse) error {
	if err := r.db.WithContext(ctx).Create(response).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: response for survey #%d already exists", apperrors.ErrConflict, response.SurveyID)
		}
		return err
	}
	return nil
}

// Update точечно обновляет колонки ответа и возвращает актуальную строку
func (r *SurveyResponseRepo) Update(ctx context.Context, id int64, fields map[string]interface{}) (*entity.SurveyResponse, error) {
	var updated entity.SurveyResponse
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fields) > 0 {
			result := tx.Model(&entity.SurveyResponse{}).Where("id = ?", id).Updates(fields)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return apperrors.ErrNotFound
			}
		}
		return tx.First(&updated, id).Error
	})
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &updated, nil
}

// StatsBySurvey считает агрегаты по ответам опроса
func (r *SurveyResponseRepo) StatsBySurvey(ctx context.Context, surveyID int64) (*repository.SurveyStats, error) {
	var row struct {
		Total         int64
		Completed     int64
		AverageRating *float64
		FeedbackCount int64
	}

	err := r.db.WithContext(ctx).
		Model(&entity.SurveyResponse{}).
		Select(`COUNT(*) AS total,
			COUNT(completed_at) AS completed,
			AVG(CASE WHEN completed_at IS NOT NULL THEN overall_rating END) AS average_rating,
			COALESCE(SUM(CASE WHEN completed_at IS NOT NULL AND open_feedback IS NOT NULL AND TRIM(open_feedback) <> '' THEN 1 ELSE 0 END), 0) AS feedback_count`).
		Where("survey_id = ?", surveyID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	return &repository.SurveyStats{
		Total:         row.Total,
		Completed:     row.Completed,
		AverageRating: row.AverageRating,
		FeedbackCount: row.FeedbackCount,
	}, nil
}

// ListBySurvey возвращает все ответы опроса в порядке создания
func (r *SurveyResponseRepo) ListBySurvey(ctx context.Context, surveyID int64) ([]entity.SurveyResponse, error) {
	var responses []entity.SurveyResponse
	err := r.db.WithContext(ctx).
		Where("survey_id = ?", surveyID).
		Order("created_at ASC, id ASC").
		Find(&responses).Error
	return responses, err
}
