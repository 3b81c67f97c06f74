package service

import (
	"context"
	"fmt"
	"math"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
	"github.com/yourusername/pilotvoice-api/internal/domain/repository"
)

// SurveyResults - агрегированные результаты опроса
type SurveyResults struct {
	SurveyID             int64   `json:"surveyId"`
	CompetitionName      string  `json:"competitionName"`
	ParticipantCount     int     `json:"participantCount"`
	ResponsesCompleted   int64   `json:"responsesCompleted"`
	ResponsesAbandoned   int64   `json:"responsesAbandoned"`
	AverageOverallRating float64 `json:"averageOverallRating"`
	// OpenFeedbackCompletionRate - доля завершенных ответов с отзывом, в процентах
	OpenFeedbackCompletionRate float64 `json:"openFeedbackCompletionRate"`
}

// SurveyResultsService считает результаты опроса для администраторов
type SurveyResultsService struct {
	surveys      repository.SurveyRepository
	competitions repository.CompetitionRepository
	responses    repository.SurveyResponseRepository
}

// NewSurveyResultsService создает сервис результатов
func NewSurveyResultsService(surveys repository.SurveyRepository, competitions repository.CompetitionRepository, responses repository.SurveyResponseRepository) *SurveyResultsService {
	return &SurveyResultsService{surveys: surveys, competitions: competitions, responses: responses}
}

// GetResults возвращает агрегаты по опросу
func (s *SurveyResultsService) GetResults(ctx context.Context, surveyID int64) (*SurveyResults, error) {
	survey, err := s.surveys.GetByID(ctx, surveyID)
	if err != nil {
		return nil, fmt.Errorf("survey #%d: %w", surveyID, err)
	}
	competition, err := s.competitions.GetByID(ctx, survey.CompetitionID)
	if err != nil {
		return nil, fmt.Errorf("competition #%d: %w", survey.CompetitionID, err)
	}
	stats, err := s.responses.StatsBySurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	results := &SurveyResults{
		SurveyID:           surveyID,
		CompetitionName:    competition.Name,
		ResponsesCompleted: stats.Completed,
		ResponsesAbandoned: stats.Total - stats.Completed,
	}
	if competition.ParticipantCount != nil {
		results.ParticipantCount = *competition.ParticipantCount
	}
	if stats.AverageRating != nil {
		results.AverageOverallRating = round2(*stats.AverageRating)
	}
	if stats.Completed > 0 {
		results.OpenFeedbackCompletionRate = round2(float64(stats.FeedbackCount) * 100 / float64(stats.Completed))
	}
	return results, nil
}

// ListResponses возвращает все ответы опроса для экспорта
func (s *SurveyResultsService) ListResponses(ctx context.Context, surveyID int64) (*entity.Survey, []entity.SurveyResponse, error) {
	survey, err := s.surveys.GetByID(ctx, surveyID)
	if err != nil {
		return nil, nil, fmt.Errorf("survey #%d: %w", surveyID, err)
	}
	responses, err := s.responses.ListBySurvey(ctx, surveyID)
	if err != nil {
		return nil, nil, err
	}
	return survey, responses, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
