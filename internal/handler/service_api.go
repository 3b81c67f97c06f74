package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
	"github.com/yourusername/pilotvoice-api/internal/fillflow"
	apperrors "github.com/yourusername/pilotvoice-api/internal/pkg/errors"
	"github.com/yourusername/pilotvoice-api/internal/service"
)

// ServiceAPI реализует fillflow.API поверх SurveyResponseService для одного пользователя.
// Используется сессией заполнения внутри процесса (websocket) и страницей опроса.
type ServiceAPI struct {
	responses  *service.SurveyResponseService
	userID     uuid.UUID
	email      string
	checkLimit CheckLimiter
}

// CheckLimiter ограничивает частоту проверок текста на персональные данные для пользователя
type CheckLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID) bool
}

var _ fillflow.API = (*ServiceAPI)(nil)

// NewServiceAPI создает API от имени пользователя. uuid.Nil означает анонимного посетителя.
func NewServiceAPI(responses *service.SurveyResponseService, userID uuid.UUID, email string) *ServiceAPI {
	return &ServiceAPI{responses: responses, userID: userID, email: email}
}

// WithCheckLimit включает лимит на CheckGDPR. nil снимает лимит.
func (a *ServiceAPI) WithCheckLimit(limit CheckLimiter) *ServiceAPI {
	a.checkLimit = limit
	return a
}

func (a *ServiceAPI) GetMyResponse(ctx context.Context, surveyID int64) (*fillflow.Response, error) {
	if a.userID == uuid.Nil {
		return nil, apperrors.ErrUnauthorized
	}
	response, err := a.responses.FindUserResponse(ctx, surveyID, a.userID)
	if err != nil {
		return nil, err
	}
	return toFillResponse(response), nil
}

func (a *ServiceAPI) CreateResponse(ctx context.Context, surveyID int64) (*fillflow.Response, error) {
	if a.userID == uuid.Nil {
		return nil, apperrors.ErrUnauthorized
	}
	response, err := a.responses.CreateSurveyResponse(ctx, service.CreateSurveyResponseCommand{}, surveyID, a.userID)
	if err != nil {
		return nil, err
	}
	return toFillResponse(response), nil
}

func (a *ServiceAPI) UpdateResponse(ctx context.Context, responseID int64, patch fillflow.Patch) (*fillflow.Response, error) {
	if a.userID == uuid.Nil {
		return nil, apperrors.ErrUnauthorized
	}
	cmd := service.UpdateSurveyResponseCommand{
		OverallRating: patch.OverallRating,
		OpenFeedback:  patch.OpenFeedback,
		CompletedAt:   patch.CompletedAt,
	}
	response, err := a.responses.UpdateSurveyResponse(ctx, cmd, responseID, a.userID, a.email)
	if err != nil {
		return nil, err
	}
	return toFillResponse(response), nil
}

func (a *ServiceAPI) CheckGDPR(ctx context.Context, text string) (*fillflow.Verdict, error) {
	if a.userID == uuid.Nil {
		return nil, apperrors.ErrUnauthorized
	}
	if a.checkLimit != nil && !a.checkLimit.Allow(ctx, a.userID) {
		return nil, apperrors.ErrRateLimited
	}
	result, err := a.responses.CheckFeedback(ctx, text)
	if err != nil {
		return nil, err
	}
	return &fillflow.Verdict{
		ContainsPersonalData: result.ContainsPersonalData,
		Confidence:           result.Confidence,
		OriginalText:         result.OriginalText,
		AnonymizedText:       result.AnonymizedText,
		DetectedDataTypes:    result.DetectedDataTypes,
	}, nil
}

func toFillResponse(r *entity.SurveyResponse) *fillflow.Response {
	if r == nil {
		return nil
	}
	return &fillflow.Response{
		ID:            r.ID,
		SurveyID:      r.SurveyID,
		UserID:        r.UserID.String(),
		OverallRating: r.OverallRating,
		OpenFeedback:  r.OpenFeedback,
		CompletedAt:   r.CompletedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
