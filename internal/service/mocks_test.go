package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
	"github.com/yourusername/pilotvoice-api/internal/domain/repository"
	"github.com/yourusername/pilotvoice-api/pkg/openrouter"
)

// ============================================================================
// Моки репозиториев и внешних зависимостей сервисов
// ============================================================================

func intPtr(v int) *int              { return &v }
func strPtr(v string) *string        { return &v }
func timePtr(v time.Time) *time.Time { return &v }

var testLogger = zap.NewNop()

// MockSurveyResponseRepository реализует repository.SurveyResponseRepository
type MockSurveyResponseRepository struct {
	mock.Mock
}

func (m *MockSurveyResponseRepository) GetByID(ctx context.Context, id int64) (*entity.SurveyResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.SurveyResponse), args.Error(1)
}

func (m *MockSurveyResponseRepository) FindBySurveyAndUser(ctx context.Context, surveyID int64, userID uuid.UUID) (*entity.SurveyResponse, error) {
	args := m.Called(ctx, surveyID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.SurveyResponse), args.Error(1)
}

func (m *MockSurveyResponseRepository) Create(ctx context.Context, response *entity.SurveyResponse) error {
	args := m.Called(ctx, response)
	return args.Error(0)
}

func (m *MockSurveyResponseRepository) Update(ctx context.Context, id int64, fields map[string]interface{}) (*entity.SurveyResponse, error) {
	args := m.Called(ctx, id, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.SurveyResponse), args.Error(1)
}

func (m *MockSurveyResponseRepository) StatsBySurvey(ctx context.Context, surveyID int64) (*repository.SurveyStats, error) {
	args := m.Called(ctx, surveyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.SurveyStats), args.Error(1)
}

func (m *MockSurveyResponseRepository) ListBySurvey(ctx context.Context, surveyID int64) ([]entity.SurveyResponse, error) {
	args := m.Called(ctx, surveyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.SurveyResponse), args.Error(1)
}

// MockSurveyRepository реализует repository.SurveyRepository
type MockSurveyRepository struct {
	mock.Mock
}

func (m *MockSurveyRepository) GetByID(ctx context.Context, id int64) (*entity.Survey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Survey), args.Error(1)
}

func (m *MockSurveyRepository) GetBySlug(ctx context.Context, slug string) (*entity.Survey, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Survey), args.Error(1)
}

// MockCompetitionRepository реализует repository.CompetitionRepository
type MockCompetitionRepository struct {
	mock.Mock
}

func (m *MockCompetitionRepository) GetByID(ctx context.Context, id int64) (*entity.Competition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Competition), args.Error(1)
}

func (m *MockCompetitionRepository) List(ctx context.Context, params repository.CompetitionListParams) ([]entity.Competition, int64, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Competition), args.Get(1).(int64), args.Error(2)
}

// MockProfileRepository реализует repository.ProfileRepository
type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*entity.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Profile), args.Error(1)
}

func (m *MockProfileRepository) Update(ctx context.Context, userID uuid.UUID, fields map[string]interface{}) (*entity.Profile, error) {
	args := m.Called(ctx, userID, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Profile), args.Error(1)
}

// MockGdprScreeningRepository реализует repository.GdprScreeningRepository
type MockGdprScreeningRepository struct {
	mock.Mock
}

func (m *MockGdprScreeningRepository) Create(ctx context.Context, screening *entity.GdprScreening) error {
	args := m.Called(ctx, screening)
	return args.Error(0)
}

// MockCacheRepository реализует repository.CacheRepository
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *MockCacheRepository) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, expiration)
	return args.Bool(0), args.Error(1)
}

// MockAnonymizer реализует Anonymizer
type MockAnonymizer struct {
	mock.Mock
}

func (m *MockAnonymizer) CheckAndAnonymize(ctx context.Context, text string) (*GdprCheckResult, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*GdprCheckResult), args.Error(1)
}

// MockCompleter реализует StructuredCompleter.
// Ответ задается функцией, заполняющей dest.
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) StructuredCompletion(ctx context.Context, params openrouter.CompletionParams, dest any) error {
	args := m.Called(ctx, params, dest)
	if fill, ok := args.Get(0).(func(dest any)); ok && fill != nil {
		fill(dest)
	}
	return args.Error(1)
}

// MockEmailService реализует EmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendCompletionReceipt(ctx context.Context, toEmail string, receipt CompletionReceipt) error {
	args := m.Called(ctx, toEmail, receipt)
	return args.Error(0)
}
