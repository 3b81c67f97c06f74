package entity

import (
	"time"

	"gorm.io/datatypes"
)

// GdprScreening - запись аудита проверки отзыва на персональные данные.
// Сам текст отзыва не сохраняется.
type GdprScreening struct {
	ID                   int64          `gorm:"primaryKey" json:"id"`
	SurveyResponseID     *int64         `gorm:"index" json:"survey_response_id"`
	ContainsPersonalData bool           `gorm:"not null" json:"contains_personal_data"`
	Confidence           float64        `gorm:"not null" json:"confidence"`
	DetectedDataTypes    datatypes.JSON `json:"detected_data_types"`
	Anonymized           bool           `gorm:"not null;default:false" json:"anonymized"`
	CreatedAt            time.Time      `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (GdprScreening) TableName() string {
	return "gdpr_screenings"
}
