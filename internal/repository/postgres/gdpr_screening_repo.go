package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
)

// GdprScreeningRepo реализует repository.GdprScreeningRepository
type GdprScreeningRepo struct {
	db *gorm.DB
}

// NewGdprScreeningRepo создает репозиторий аудита проверок
func NewGdprScreeningRepo(db *gorm.DB) *GdprScreeningRepo {
	return &GdprScreeningRepo{db: db}
}

// Create сохраняет запись аудита
func (r *GdprScreeningRepo) Create(ctx context.Context, screening *entity.GdprScreening) error {
	return r.db.WithContext(ctx).Create(screening).Error
}
