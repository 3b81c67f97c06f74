package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
	"github.com/yourusername/pilotvoice-api/internal/domain/repository"
)

// Колонки, по которым разрешена сортировка
var competitionSortColumns = map[string]string{
	"name":         "name",
	"starts_at":    "starts_at",
	"ends_at":      "ends_at",
	"city":         "city",
	"country_code": "country_code",
}

// CompetitionRepo реализует repository.CompetitionRepository
type CompetitionRepo struct {
	db *gorm.DB
}

// NewCompetitionRepo создает новый репозиторий соревнований
func NewCompetitionRepo(db *gorm.DB) *CompetitionRepo {
	return &CompetitionRepo{db: db}
}

// GetByID возвращает соревнование по ID
func (r *CompetitionRepo) GetByID(ctx context.Context, id int64) (*entity.Competition, error) {
	var competition entity.Competition
	if err := r.db.WithContext(ctx).First(&competition, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &competition, nil
}

// List возвращает страницу соревнований и общее количество
func (r *CompetitionRepo) List(ctx context.Context, params repository.CompetitionListParams) ([]entity.Competition, int64, error) {
	column, ok := competitionSortColumns[params.SortBy]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported sort column %q", params.SortBy)
	}
	direction := "ASC"
	if params.Desc {
		direction = "DESC"
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&entity.Competition{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var competitions []entity.Competition
	err := r.db.WithContext(ctx).
		Order(fmt.Sprintf("%s %s, id ASC", column, direction)).
		Limit(params.Limit).
		Offset(params.Offset).
		Find(&competitions).Error
	if err != nil {
		return nil, 0, err
	}
	return competitions, total, nil
}
