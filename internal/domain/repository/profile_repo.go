package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
)

// ProfileRepository определяет методы для работы с профилями
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*entity.Profile, error)
	Update(ctx context.Context, userID uuid.UUID, fields map[string]interface{}) (*entity.Profile, error)
}
