package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yourusername/pilotvoice-api/internal/handler/dto"
	"github.com/yourusername/pilotvoice-api/internal/middleware"
	apperrors "github.com/yourusername/pilotvoice-api/internal/pkg/errors"
	"github.com/yourusername/pilotvoice-api/internal/service"
)

// Ключи контекста для ID из пути, заполняются middleware.ExtractIDParam
const (
	ctxSurveyID   = "surveyID"
	ctxResponseID = "responseID"
)

// SurveyResponseHandler обрабатывает запросы к ответам на опросы
type SurveyResponseHandler struct {
	responses *service.SurveyResponseService
	logger    *zap.Logger
}

// NewSurveyResponseHandler создает обработчик ответов на опросы
func NewSurveyResponseHandler(responses *service.SurveyResponseService, logger *zap.Logger) *SurveyResponseHandler {
	return &SurveyResponseHandler{responses: responses, logger: logger}
}

// GetMyResponse возвращает ответ текущего пользователя или null
// GET /api/surveys/:surveyId/responses/me
func (h *SurveyResponseHandler) GetMyResponse(c *gin.Context) {
	surveyID := c.MustGet(ctxSurveyID).(int64)
	userID, _ := middleware.UserIDFromContext(c)

	response, err := h.responses.FindUserResponse(c.Request.Context(), surveyID, userID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch survey response")
		return
	}

	c.JSON(http.StatusOK, dto.NewSurveyResponseDto(response))
}

// CreateResponseRequest - необязательное тело запроса создания ответа
type CreateResponseRequest struct {
	OverallRating *int `json:"overall_rating" binding:"omitempty,min=1,max=5"`
}

// CreateResponse создает ответ на опрос. Тело запроса необязательно.
// POST /api/surveys/:surveyId/responses
func (h *SurveyResponseHandler) CreateResponse(c *gin.Context) {
	surveyID := c.MustGet(ctxSurveyID).(int64)
	userID, _ := middleware.UserIDFromContext(c)

	var req CreateResponseRequest
	if err := bindJSON(c, &req, true); err != nil {
		respondBindError(c, err)
		return
	}

	cmd := service.CreateSurveyResponseCommand{OverallRating: req.OverallRating}
	response, err := h.responses.CreateSurveyResponse(c.Request.Context(), cmd, surveyID, userID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to create survey response")
		return
	}

	c.JSON(http.StatusCreated, dto.NewSurveyResponseDto(response))
}

// UpdateResponse частично обновляет ответ владельца
// PATCH /api/survey-responses/:responseId
func (h *SurveyResponseHandler) UpdateResponse(c *gin.Context) {
	responseID := c.MustGet(ctxResponseID).(int64)
	userID, _ := middleware.UserIDFromContext(c)

	// Команда из полей nullable.Field: теги валидатора не отличают отсутствующее поле от null,
	// поэтому значения проверяет сервис
	var cmd service.UpdateSurveyResponseCommand
	if err := bindJSON(c, &cmd, true); err != nil {
		respondBindError(c, err)
		return
	}

	response, err := h.responses.UpdateSurveyResponse(c.Request.Context(), cmd, responseID, userID, middleware.EmailFromContext(c))
	if err != nil {
		if errors.Is(err, apperrors.ErrScreeningFailed) {
			h.logger.Error("Feedback screening failed", zap.Int64("response_id", responseID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error", "message": "Failed to process feedback"})
			return
		}
		respondError(c, h.logger, err, "Failed to update survey response")
		return
	}

	c.JSON(http.StatusOK, dto.NewSurveyResponseDto(response))
}

// CheckGdprRequest - тело запроса проверки текста
type CheckGdprRequest struct {
	Text string `json:"text" binding:"required"`
}

// CheckGdpr проверяет текст на персональные данные без сохранения
// POST /api/survey-responses/check-gdpr
func (h *SurveyResponseHandler) CheckGdpr(c *gin.Context) {
	var req CheckGdprRequest
	if err := bindJSON(c, &req, false); err != nil {
		var typeErr *json.UnmarshalTypeError
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &typeErr) && !errors.As(err, &validationErrs) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": msgInvalidJSON})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": "Text field is required and must be a string"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": "Text cannot be empty"})
		return
	}

	result, err := h.responses.CheckFeedback(c.Request.Context(), req.Text)
	if err != nil {
		if errors.Is(err, apperrors.ErrScreeningFailed) {
			h.logger.Warn("GDPR check failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Service Error", "message": "Failed to check for personal data. Please try again."})
			return
		}
		respondError(c, h.logger, err, "An unexpected error occurred")
		return
	}

	c.JSON(http.StatusOK, result)
}
