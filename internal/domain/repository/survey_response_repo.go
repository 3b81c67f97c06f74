package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
)

// SurveyStats - агрегаты ответов на опрос
type SurveyStats struct {
	Total         int64
	Completed     int64
	AverageRating *float64
	// FeedbackCount - завершенные ответы с непустым отзывом
	FeedbackCount int64
}

// SurveyResponseRepository определяет методы для работы с ответами на опросы
type SurveyResponseRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.SurveyResponse, error)
	// FindBySurveyAndUser возвращает ErrNotFound, если пользователь еще не начинал опрос
	FindBySurveyAndUser(ctx context.Context, surveyID int64, userID uuid.UUID) (*entity.SurveyResponse, error)
	// Create вставляет строку; дубликат (survey_id, user_id) возвращает ErrConflict
	Create(ctx context.Context, response *entity.SurveyResponse) error
	// Update точечно обновляет переданные колонки и возвращает актуальную строку
	Update(ctx context.Context, id int64, fields map[string]interface{}) (*entity.SurveyResponse, error)
	StatsBySurvey(ctx context.Context, surveyID int64) (*SurveyStats, error)
	ListBySurvey(ctx context.Context, surveyID int64) ([]entity.SurveyResponse, error)
}
