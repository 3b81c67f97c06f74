package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/pilotvoice-api/internal/fillflow"
	"github.com/yourusername/pilotvoice-api/internal/handler/dto"
	"github.com/yourusername/pilotvoice-api/internal/middleware"
	"github.com/yourusername/pilotvoice-api/internal/service"
)

// SurveyHandler отдает публичные страницы опросов и список соревнований
type SurveyHandler struct {
	surveys      *service.SurveyService
	competitions *service.CompetitionService
	responses    *service.SurveyResponseService
	loginPath    string
	logger       *zap.Logger
}

// NewSurveyHandler создает обработчик опросов
func NewSurveyHandler(
	surveys *service.SurveyService,
	competitions *service.CompetitionService,
	responses *service.SurveyResponseService,
	loginPath string,
	logger *zap.Logger,
) *SurveyHandler {
	return &SurveyHandler{
		surveys:      surveys,
		competitions: competitions,
		responses:    responses,
		loginPath:    loginPath,
		logger:       logger,
	}
}

// GetSurveyBySlug возвращает опрос с соревнованием и действием для кнопки начала.
// Маршрут открыт; если передан валидный токен, кнопка учитывает ответ пользователя.
// GET /api/surveys/slug/:slug
func (h *SurveyHandler) GetSurveyBySlug(c *gin.Context) {
	slug := c.Param("slug")

	survey, err := h.surveys.GetSurveyBySlug(c.Request.Context(), slug)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch survey")
		return
	}

	userID, _ := middleware.UserIDFromContext(c)
	api := NewServiceAPI(h.responses, userID, middleware.EmailFromContext(c))
	action, err := fillflow.ResolveStartAction(c.Request.Context(), api, survey.ID, slug, h.loginPath)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch survey")
		return
	}

	c.JSON(http.StatusOK, dto.NewSurveyPageDto(survey, time.Now(), &action))
}

// GetSurvey возвращает опрос по ID
// GET /api/surveys/:surveyId
func (h *SurveyHandler) GetSurvey(c *gin.Context) {
	surveyID := c.MustGet(ctxSurveyID).(int64)

	survey, err := h.surveys.GetSurvey(c.Request.Context(), surveyID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch survey")
		return
	}

	c.JSON(http.StatusOK, dto.NewSurveyPageDto(survey, time.Now(), nil))
}

// ListCompetitions возвращает страницу соревнований
// GET /api/competitions?page=1&pageSize=10&sortBy=starts_at&order=desc
func (h *SurveyHandler) ListCompetitions(c *gin.Context) {
	page, pageErr := queryInt(c, "page", 1)
	pageSize, sizeErr := queryInt(c, "pageSize", service.DefaultCompetitionPageSize)
	if pageErr != nil || sizeErr != nil {
		verr := service.NewValidationError()
		if pageErr != nil {
			verr.Add("page", "must be an integer")
		}
		if sizeErr != nil {
			verr.Add("pageSize", "must be an integer")
		}
		respondError(c, h.logger, verr, "")
		return
	}

	result, err := h.competitions.ListCompetitions(c.Request.Context(), service.ListCompetitionsQuery{
		Page:     page,
		PageSize: pageSize,
		SortBy:   c.Query("sortBy"),
		Order:    c.Query("order"),
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch competitions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       dto.NewCompetitionListDto(result.Data),
		"pagination": result.Pagination,
	})
}

// queryInt читает целочисленный query-параметр, возвращая def при его отсутствии
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
