package repository

import (
	"context"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
)

// CompetitionListParams - параметры постраничной выборки соревнований
type CompetitionListParams struct {
	Limit  int
	Offset int
	SortBy string // name, starts_at, ends_at, city, country_code
	Desc   bool
}

// CompetitionRepository определяет методы для работы с соревнованиями
type CompetitionRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Competition, error)
	// List возвращает страницу соревнований и общее количество
	List(ctx context.Context, params CompetitionListParams) ([]entity.Competition, int64, error)
}
