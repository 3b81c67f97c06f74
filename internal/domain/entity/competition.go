package entity

import "time"

// Competition представляет соревнование, к которому привязан опрос
type Competition struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"size:255;not null" json:"name"`
	City             string    `gorm:"size:255;not null" json:"city"`
	CountryCode      string    `gorm:"size:2;not null" json:"country_code"`
	StartsAt         time.Time `gorm:"not null;index" json:"starts_at"`
	EndsAt           time.Time `gorm:"not null" json:"ends_at"`
	ParticipantCount *int      `json:"participant_count"`
	TasksCount       *int      `json:"tasks_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Competition) TableName() string {
	return "competitions"
}
