package repository

import (
	"context"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
)

// GdprScreeningRepository хранит аудит проверок на персональные данные
type GdprScreeningRepository interface {
	Create(ctx context.Context, screening *entity.GdprScreening) error
}
