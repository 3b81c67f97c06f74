package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/yourusername/pilotvoice-api/internal/config"
	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
	"github.com/yourusername/pilotvoice-api/internal/domain/repository"
	apperrors "github.com/yourusername/pilotvoice-api/internal/pkg/errors"
	"github.com/yourusername/pilotvoice-api/internal/pkg/nullable"
	"github.com/yourusername/pilotvoice-api/pkg/monitoring"
)

// CreateSurveyResponseCommand - данные для создания ответа
type CreateSurveyResponseCommand struct {
	OverallRating *int `json:"overall_rating"`
}

// UpdateSurveyResponseCommand - частичное обновление ответа.
// Незаданное поле не изменяется, поле со значением null очищается.
type UpdateSurveyResponseCommand struct {
	OverallRating nullable.Field[int]       `json:"overall_rating"`
	OpenFeedback  nullable.Field[string]    `json:"open_feedback"`
	CompletedAt   nullable.Field[time.Time] `json:"completed_at"`
}

// SurveyResponseServiceDeps - зависимости SurveyResponseService
type SurveyResponseServiceDeps struct {
	Responses   repository.SurveyResponseRepository
	Surveys     repository.SurveyRepository
	Competition repository.CompetitionRepository
	Screenings  repository.GdprScreeningRepository
	Anonymizer  Anonymizer
	Email       EmailService
	Metrics     *monitoring.Metrics
	Rules       config.SurveyConfig
	PublicURL   string
	Logger      *zap.Logger
}

// SurveyResponseService управляет жизненным циклом ответа на опрос
type SurveyResponseService struct {
	responses   repository.SurveyResponseRepository
	surveys     repository.SurveyRepository
	competition repository.CompetitionRepository
	screenings  repository.GdprScreeningRepository
	anonymizer  Anonymizer
	email       EmailService
	metrics     *monitoring.Metrics
	rules       config.SurveyConfig
	publicURL   string
	logger      *zap.Logger
	now         func() time.Time

	background sync.WaitGroup
}

// NewSurveyResponseService создает сервис ответов на опросы
func NewSurveyResponseService(deps SurveyResponseServiceDeps) *SurveyResponseService {
	email := deps.Email
	if email == nil {
		email = NewNoopEmailService(deps.Logger)
	}
	return &SurveyResponseService{
		responses:   deps.Responses,
		surveys:     deps.Surveys,
		competition: deps.Competition,
		screenings:  deps.Screenings,
		anonymizer:  deps.Anonymizer,
		email:       email,
		metrics:     deps.Metrics,
		rules:       deps.Rules,
		publicURL:   deps.PublicURL,
		logger:      deps.Logger,
		now:         time.Now,
	}
}

// FindUserResponse возвращает ответ пользователя или nil, если он еще не начинал опрос
func (s *SurveyResponseService) FindUserResponse(ctx context.Context, surveyID int64, userID uuid.UUID) (*entity.SurveyResponse, error) {
	if _, err := s.surveys.GetByID(ctx, surveyID); err != nil {
		return nil, fmt.Errorf("survey #%d: %w", surveyID, err)
	}

	response, err := s.responses.FindBySurveyAndUser(ctx, surveyID, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return response, nil
}

// CreateSurveyResponse создает ответ. Дубликат определяется уникальным индексом, а не предварительным чтением.
func (s *SurveyResponseService) CreateSurveyResponse(ctx context.Context, cmd CreateSurveyResponseCommand, surveyID int64, userID uuid.UUID) (*entity.SurveyResponse, error) {
	survey, err := s.surveys.GetByID(ctx, surveyID)
	if err != nil {
		return nil, fmt.Errorf("survey #%d: %w", surveyID, err)
	}
	if err := s.checkWindow(survey); err != nil {
		return nil, err
	}

	verr := NewValidationError()
	s.validateRating(verr, cmd.OverallRating)
	if !verr.Empty() {
		return nil, verr
	}

	response := &entity.SurveyResponse{
		SurveyID:      surveyID,
		UserID:        userID,
		OverallRating: cmd.OverallRating,
	}
	if err := s.responses.Create(ctx, response); err != nil {
		return nil, err
	}

	s.logger.Info("Survey response created",
		zap.Int64("survey_id", surveyID),
		zap.Int64("response_id", response.ID),
	)
	return response, nil
}

// UpdateSurveyResponse частично обновляет ответ владельца.
// Отзыв проходит проверку на персональные данные до записи; при ошибке проверки ничего не сохраняется.
func (s *SurveyResponseService) UpdateSurveyResponse(ctx context.Context, cmd UpdateSurveyResponseCommand, responseID int64, userID uuid.UUID, notifyEmail string) (*entity.SurveyResponse, error) {
	current, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, fmt.Errorf("survey response #%d: %w", responseID, err)
	}
	if !current.IsOwnedBy(userID) {
		return nil, ErrNotResponseOwner
	}
	if current.IsCompleted() {
		return nil, ErrResponseCompleted
	}

	if err := s.validateUpdate(cmd, current); err != nil {
		return nil, err
	}

	var survey *entity.Survey
	if s.rules.EnforceWindow {
		survey, err = s.surveys.GetByID(ctx, current.SurveyID)
		if err != nil {
			return nil, fmt.Errorf("survey #%d: %w", current.SurveyID, err)
		}
		if err := s.checkWindow(survey); err != nil {
			return nil, err
		}
	}

	fields := make(map[string]interface{})
	if cmd.OverallRating.Set {
		fields["overall_rating"] = cmd.OverallRating.Value
	}
	if cmd.CompletedAt.Set {
		fields["completed_at"] = cmd.CompletedAt.Value
	}

	var verdict *GdprCheckResult
	if cmd.OpenFeedback.Set {
		if cmd.OpenFeedback.IsNull() {
			fields["open_feedback"] = nil
		} else {
			verdict, err = s.screen(ctx, *cmd.OpenFeedback.Value)
			if err != nil {
				return nil, err
			}
			stored := verdict.OriginalText
			if verdict.ContainsPersonalData {
				stored = *verdict.AnonymizedText
			}
			fields["open_feedback"] = stored
		}
	}

	updated, err := s.responses.Update(ctx, responseID, fields)
	if err != nil {
		return nil, err
	}

	if verdict != nil {
		s.recordScreening(ctx, responseID, verdict)
	}

	if updated.IsCompleted() {
		s.metrics.ObserveCompletion()
		s.logger.Info("Survey response completed",
			zap.Int64("survey_id", updated.SurveyID),
			zap.Int64("response_id", updated.ID),
		)
		if notifyEmail != "" {
			s.sendReceipt(updated, survey, notifyEmail)
		}
	}

	return updated, nil
}

// CheckFeedback проверяет текст на персональные данные без сохранения
func (s *SurveyResponseService) CheckFeedback(ctx context.Context, text string) (*GdprCheckResult, error) {
	return s.screen(ctx, text)
}

// Wait дожидается фоновых задач (отправки писем)
func (s *SurveyResponseService) Wait() {
	s.background.Wait()
}

func (s *SurveyResponseService) screen(ctx context.Context, text string) (*GdprCheckResult, error) {
	if s.rules.ScreeningTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.rules.ScreeningTimeout)
		defer cancel()
	}

	verdict, err := s.anonymizer.CheckAndAnonymize(ctx, text)
	if err != nil {
		s.metrics.ObserveGdprCheck("error")
		return nil, wrapAnonymizationError(err)
	}
	if verdict.ContainsPersonalData && (verdict.AnonymizedText == nil || *verdict.AnonymizedText == "") {
		s.metrics.ObserveGdprCheck("error")
		return nil, &AnonymizationError{Reason: "flagged text has no anonymized version"}
	}

	if verdict.ContainsPersonalData {
		s.metrics.ObserveGdprCheck("flagged")
	} else {
		s.metrics.ObserveGdprCheck("clean")
	}
	return verdict, nil
}

func (s *SurveyResponseService) recordScreening(ctx context.Context, responseID int64, verdict *GdprCheckResult) {
	types, err := json.Marshal(verdict.DetectedDataTypes)
	if err != nil || verdict.DetectedDataTypes == nil {
		types = []byte("[]")
	}
	screening := &entity.GdprScreening{
		SurveyResponseID:     &responseID,
		ContainsPersonalData: verdict.ContainsPersonalData,
		Confidence:           verdict.Confidence,
		DetectedDataTypes:    datatypes.JSON(types),
		Anonymized:           verdict.ContainsPersonalData,
	}
	if err := s.screenings.Create(ctx, screening); err != nil {
		s.logger.Warn("Failed to record GDPR screening", zap.Int64("response_id", responseID), zap.Error(err))
	}
}

func (s *SurveyResponseService) sendReceipt(response *entity.SurveyResponse, survey *entity.Survey, toEmail string) {
	receipt := CompletionReceipt{
		ResponseID:  response.ID,
		Rating:      response.OverallRating,
		MaxRating:   s.rules.MaxRating,
		CompletedAt: *response.CompletedAt,
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if survey == nil {
			if loaded, err := s.surveys.GetByID(ctx, response.SurveyID); err == nil {
				survey = loaded
			}
		}
		if survey != nil {
			if s.competition != nil {
				if c, err := s.competition.GetByID(ctx, survey.CompetitionID); err == nil {
					receipt.CompetitionName = c.Name
				}
			}
			if survey.Slug != nil && s.publicURL != "" {
				receipt.ResultURL = fmt.Sprintf("%s/surveys/%s/thanks", s.publicURL, *survey.Slug)
			}
		}

		if err := s.email.SendCompletionReceipt(ctx, toEmail, receipt); err != nil {
			s.logger.Warn("Failed to send completion receipt", zap.Int64("response_id", response.ID), zap.Error(err))
		}
	}()
}

func (s *SurveyResponseService) checkWindow(survey *entity.Survey) error {
	if s.rules.EnforceWindow && !survey.IsOpen(s.now()) {
		return ErrSurveyClosed
	}
	return nil
}

func (s *SurveyResponseService) validateRating(verr *ValidationError, rating *int) {
	if rating == nil {
		return
	}
	if *rating < s.rules.MinRating || *rating > s.rules.MaxRating {
		verr.Add("overall_rating", fmt.Sprintf("must be between %d and %d", s.rules.MinRating, s.rules.MaxRating))
	}
}

func (s *SurveyResponseService) validateUpdate(cmd UpdateSurveyResponseCommand, current *entity.SurveyResponse) error {
	verr := NewValidationError()
	if cmd.OverallRating.Set {
		s.validateRating(verr, cmd.OverallRating.Value)
	}

	// Завершить можно только ответ с оценкой
	rating := current.OverallRating
	if cmd.OverallRating.Set {
		rating = cmd.OverallRating.Value
	}
	if cmd.CompletedAt.Value != nil && rating == nil {
		verr.Add("overall_rating", "is required to complete the survey")
	}

	if cmd.OpenFeedback.Value != nil && s.rules.FeedbackMaxLength > 0 &&
		utf8.RuneCountInString(*cmd.OpenFeedback.Value) > s.rules.FeedbackMaxLength {
		verr.Add("open_feedback", fmt.Sprintf("must be at most %d characters", s.rules.FeedbackMaxLength))
	}
	if verr.Empty() {
		return nil
	}
	return verr
}
