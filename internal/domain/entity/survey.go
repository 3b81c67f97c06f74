package entity

import "time"

// Survey - опрос по итогам соревнования с окном приема ответов [OpensAt, ClosesAt)
type Survey struct {
	ID            int64        `gorm:"primaryKey" json:"id"`
	CompetitionID int64        `gorm:"not null;index" json:"competition_id"`
	Competition   *Competition `gorm:"foreignKey:CompetitionID" json:"competition,omitempty"`
	Slug          *string      `gorm:"size:255;uniqueIndex" json:"slug"`
	OpensAt       *time.Time   `json:"opens_at"`
	ClosesAt      *time.Time   `json:"closes_at"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Survey) TableName() string {
	return "surveys"
}

// IsOpen проверяет, принимает ли опрос ответы в момент now.
// Отсутствующая граница окна считается открытой.
func (s *Survey) IsOpen(now time.Time) bool {
	if s.OpensAt != nil && now.Before(*s.OpensAt) {
		return false
	}
	if s.ClosesAt != nil && !now.Before(*s.ClosesAt) {
		return false
	}
	return true
}
