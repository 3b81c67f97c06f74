package entity

import (
	"time"

	"github.com/google/uuid"
)

// Роли пользователей
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Profile - профиль пилота, привязанный к пользователю провайдера аутентификации
type Profile struct {
	UserID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	CivlID             *int      `json:"civl_id"`
	RegistrationReason *string   `gorm:"type:text" json:"registration_reason"`
	Role               string    `gorm:"size:20;not null;default:'user'" json:"role"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Profile) TableName() string {
	return "profiles"
}

// IsAdmin проверяет, есть ли у пользователя права администратора
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}
