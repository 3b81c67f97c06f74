package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/pilotvoice-api/internal/config"
	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
	"github.com/yourusername/pilotvoice-api/internal/middleware"
	"github.com/yourusername/pilotvoice-api/internal/repository/postgres"
	"github.com/yourusername/pilotvoice-api/internal/service"
	"github.com/yourusername/pilotvoice-api/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubAnonymizer возвращает заданный вердикт или ошибку
type stubAnonymizer struct {
	mu     sync.Mutex
	result *service.GdprCheckResult
	err    error
	calls  []string
}

func (s *stubAnonymizer) CheckAndAnonymize(_ context.Context, text string) (*service.GdprCheckResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, text)
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		r := *s.result
		r.OriginalText = text
		return &r, nil
	}
	return &service.GdprCheckResult{Confidence: 0.95, OriginalText: text}, nil
}

func (s *stubAnonymizer) set(result *service.GdprCheckResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result, s.err = result, err
}

func (s *stubAnonymizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// testEnv - роутер поверх реальных сервисов и in-memory SQLite
type testEnv struct {
	router     *gin.Engine
	db         *gorm.DB
	verifier   *auth.TokenVerifier
	anonymizer *stubAnonymizer
	responses  *service.SurveyResponseService
	fill       *FillSessionHandler
	survey     *entity.Survey
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&entity.Competition{},
		&entity.Survey{},
		&entity.SurveyResponse{},
		&entity.Profile{},
		&entity.GdprScreening{},
	))

	log := zap.NewNop()
	surveyRepo := postgres.NewSurveyRepo(db)
	competitionRepo := postgres.NewCompetitionRepo(db)
	responseRepo := postgres.NewSurveyResponseRepo(db)
	profileRepo := postgres.NewProfileRepo(db)

	anonymizer := &stubAnonymizer{}
	responses := service.NewSurveyResponseService(service.SurveyResponseServiceDeps{
		Responses:   responseRepo,
		Surveys:     surveyRepo,
		Competition: competitionRepo,
		Screenings:  postgres.NewGdprScreeningRepo(db),
		Anonymizer:  anonymizer,
		Rules:       config.SurveyConfig{MinRating: 1, MaxRating: 5, FeedbackMaxLength: 10000},
		Logger:      log,
	})
	t.Cleanup(responses.Wait)

	surveys := service.NewSurveyService(surveyRepo, nil, 0, log)
	profiles := service.NewProfileService(profileRepo)

	verifier, err := auth.NewTokenVerifier("handler-test-secret", "", "")
	require.NoError(t, err)
	authMiddleware := middleware.NewAuthMiddleware(verifier, profiles, "/login", log)

	fill := NewFillSessionHandler(surveys, responses, nil, nil, 30*time.Millisecond, log)

	router := gin.New()
	RegisterRoutes(router, Handlers{
		Surveys:   NewSurveyHandler(surveys, service.NewCompetitionService(competitionRepo), responses, "/login", log),
		Responses: NewSurveyResponseHandler(responses, log),
		Results:   NewResultsHandler(service.NewSurveyResultsService(surveyRepo, competitionRepo, responseRepo), log),
		Profile:   NewProfileHandler(profiles, log),
		Fill:      fill,
	}, authMiddleware, nil)

	env := &testEnv{
		router:     router,
		db:         db,
		verifier:   verifier,
		anonymizer: anonymizer,
		responses:  responses,
		fill:       fill,
	}
	env.survey = env.seedSurvey(t, "polish-open-2025")
	return env
}

func (e *testEnv) seedSurvey(t *testing.T, slug string) *entity.Survey {
	t.Helper()
	participants := 120
	competition := &entity.Competition{
		Name:             "Polish Open",
		City:             "Bielsko",
		CountryCode:      "PL",
		StartsAt:         time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		EndsAt:           time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC),
		ParticipantCount: &participants,
	}
	require.NoError(t, e.db.Create(competition).Error)
	survey := &entity.Survey{CompetitionID: competition.ID, Slug: &slug}
	require.NoError(t, e.db.Create(survey).Error)
	return survey
}

func (e *testEnv) seedProfile(t *testing.T, userID uuid.UUID, role string) {
	t.Helper()
	require.NoError(t, e.db.Create(&entity.Profile{UserID: userID, Role: role}).Error)
}

func (e *testEnv) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := e.verifier.Sign(userID, "pilot@example.com", time.Hour)
	require.NoError(t, err)
	return token
}

// do выполняет запрос; body может быть строкой (сырой JSON) или значением для сериализации
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// parseJSONResponse парсит JSON ответ из *httptest.ResponseRecorder
func parseJSONResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err, "Response body should be valid JSON: %s", w.Body.String())
	return resp
}

func responsesPath(surveyID int64) string {
	return fmt.Sprintf("/api/surveys/%d/responses", surveyID)
}

func (e *testEnv) createResponse(t *testing.T, token string) int64 {
	t.Helper()
	w := e.do(t, http.MethodPost, responsesPath(e.survey.ID), token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return int64(parseJSONResponse(t, w)["id"].(float64))
}
