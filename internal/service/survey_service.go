package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
	"github.com/yourusername/pilotvoice-api/internal/domain/repository"
	apperrors "github.com/yourusername/pilotvoice-api/internal/pkg/errors"
)

const surveySlugCachePrefix = "survey:slug:"

// SurveyService предоставляет чтение опросов
type SurveyService struct {
	surveys  repository.SurveyRepository
	cache    repository.CacheRepository
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewSurveyService создает сервис опросов. cache может быть nil.
func NewSurveyService(surveys repository.SurveyRepository, cache repository.CacheRepository, cacheTTL time.Duration, logger *zap.Logger) *SurveyService {
	return &SurveyService{surveys: surveys, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// GetSurvey возвращает опрос по ID
func (s *SurveyService) GetSurvey(ctx context.Context, id int64) (*entity.Survey, error) {
	survey, err := s.surveys.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("survey #%d: %w", id, err)
	}
	return survey, nil
}

// GetSurveyBySlug возвращает опрос вместе с соревнованием, используя кеш
func (s *SurveyService) GetSurveyBySlug(ctx context.Context, slug string) (*entity.Survey, error) {
	key := surveySlugCachePrefix + slug

	if s.cache != nil {
		var cached entity.Survey
		err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("Survey cache read failed", zap.String("slug", slug), zap.Error(err))
		}
	}

	survey, err := s.surveys.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("survey %q: %w", slug, err)
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.SetJSON(ctx, key, survey, s.cacheTTL); err != nil {
			s.logger.Warn("Survey cache write failed", zap.String("slug", slug), zap.Error(err))
		}
	}
	return survey, nil
}
