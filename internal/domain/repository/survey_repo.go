package repository

import (
	"context"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
)

// SurveyRepository определяет методы для работы с опросами
type SurveyRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Survey, error)
	// GetBySlug возвращает опрос вместе с соревнованием
	GetBySlug(ctx context.Context, slug string) (*entity.Survey, error)
}
