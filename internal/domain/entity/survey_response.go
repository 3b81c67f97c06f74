package entity

import (
	"time"

	"github.com/google/uuid"
)

// SurveyResponse - ответ одного пользователя на опрос.
// Пара (survey_id, user_id) уникальна на уровне БД.
type SurveyResponse struct {
	ID            int64      `gorm:"primaryKey" json:"id"`
	SurveyID      int64      `gorm:"not null;uniqueIndex:idx_survey_responses_survey_user" json:"survey_id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_survey_responses_survey_user" json:"user_id"`
	OverallRating *int       `json:"overall_rating"`
	OpenFeedback  *string    `gorm:"type:text" json:"open_feedback"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (SurveyResponse) TableName() string {
	return "survey_responses"
}

// IsCompleted проверяет, завершен ли ответ
func (r *SurveyResponse) IsCompleted() bool {
	return r.CompletedAt != nil
}

// IsOwnedBy проверяет, принадлежит ли ответ пользователю
func (r *SurveyResponse) IsOwnedBy(userID uuid.UUID) bool {
	return r.UserID == userID
}
