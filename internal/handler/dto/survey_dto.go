package dto

import (
	"time"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
	"github.com/yourusername/pilotvoice-api/internal/fillflow"
)

// SurveyResponseDto - ответ на опрос в HTTP API
type SurveyResponseDto struct {
	ID            int64      `json:"id"`
	SurveyID      int64      `json:"survey_id"`
	UserID        string     `json:"user_id"`
	OverallRating *int       `json:"overall_rating"`
	OpenFeedback  *string    `json:"open_feedback"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewSurveyResponseDto создает DTO из сущности. nil остается nil, чтобы GET /me отдавал null.
func NewSurveyResponseDto(r *entity.SurveyResponse) *SurveyResponseDto {
	if r == nil {
		return nil
	}
	return &SurveyResponseDto{
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

// CompetitionDto - соревнование в HTTP API
type CompetitionDto struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	City             string    `json:"city"`
	CountryCode      string    `json:"country_code"`
	StartsAt         time.Time `json:"starts_at"`
	EndsAt           time.Time `json:"ends_at"`
	ParticipantCount *int      `json:"participant_count"`
	TasksCount       *int      `json:"tasks_count"`
}

// NewCompetitionDto создает DTO соревнования
func NewCompetitionDto(c *entity.Competition) *CompetitionDto {
	if c == nil {
		return nil
	}
	return &CompetitionDto{
		ID:               c.ID,
		Name:             c.Name,
		City:             c.City,
		CountryCode:      c.CountryCode,
		StartsAt:         c.StartsAt,
		EndsAt:           c.EndsAt,
		ParticipantCount: c.ParticipantCount,
		TasksCount:       c.TasksCount,
	}
}

// NewCompetitionListDto преобразует список соревнований
func NewCompetitionListDto(items []entity.Competition) []*CompetitionDto {
	result := make([]*CompetitionDto, 0, len(items))
	for i := range items {
		result = append(result, NewCompetitionDto(&items[i]))
	}
	return result
}

// SurveyPageDto - данные страницы опроса с кнопкой начала
type SurveyPageDto struct {
	ID          int64                 `json:"id"`
	Slug        string                `json:"slug"`
	OpensAt     *time.Time            `json:"opens_at"`
	ClosesAt    *time.Time            `json:"closes_at"`
	IsOpen      bool                  `json:"is_open"`
	Competition *CompetitionDto       `json:"competition"`
	StartAction *fillflow.StartAction `json:"start_action,omitempty"`
}

// NewSurveyPageDto создает DTO страницы опроса
func NewSurveyPageDto(s *entity.Survey, now time.Time, action *fillflow.StartAction) *SurveyPageDto {
	page := &SurveyPageDto{
		ID:          s.ID,
		OpensAt:     s.OpensAt,
		ClosesAt:    s.ClosesAt,
		IsOpen:      s.IsOpen(now),
		Competition: NewCompetitionDto(s.Competition),
		StartAction: action,
	}
	if s.Slug != nil {
		page.Slug = *s.Slug
	}
	return page
}

// ProfileDto - профиль пилота
type ProfileDto struct {
	UserID             string  `json:"user_id"`
	CivlID             *int    `json:"civl_id"`
	RegistrationReason *string `json:"registration_reason"`
	Role               string  `json:"role"`
}

// NewProfileDto создает DTO профиля
func NewProfileDto(p *entity.Profile) *ProfileDto {
	return &ProfileDto{
		UserID:             p.UserID.String(),
		CivlID:             p.CivlID,
		RegistrationReason: p.RegistrationReason,
		Role:               p.Role,
	}
}
