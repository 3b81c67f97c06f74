package service

import (
	"context"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
	"github.com/yourusername/pilotvoice-api/internal/domain/repository"
)

// Параметры пагинации списка соревнований
const (
	DefaultCompetitionPageSize = 10
	MaxCompetitionPageSize     = 100
	DefaultCompetitionSort     = "starts_at"
)

var competitionSortFields = map[string]bool{
	"name":         true,
	"starts_at":    true,
	"ends_at":      true,
	"city":         true,
	"country_code": true,
}

// ListCompetitionsQuery - параметры списка соревнований
type ListCompetitionsQuery struct {
	Page     int
	PageSize int
	SortBy   string
	Order    string // asc | desc
}

// Pagination описывает страницу результатов
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

// CompetitionPage - страница соревнований
type CompetitionPage struct {
	Data       []entity.Competition `json:"data"`
	Pagination Pagination           `json:"pagination"`
}

// CompetitionService предоставляет список соревнований
type CompetitionService struct {
	competitions repository.CompetitionRepository
}

// NewCompetitionService создает сервис соревнований
func NewCompetitionService(competitions repository.CompetitionRepository) *CompetitionService {
	return &CompetitionService{competitions: competitions}
}

// ListCompetitions возвращает страницу соревнований. Пустые сортировка и порядок заменяются значениями по умолчанию.
func (s *CompetitionService) ListCompetitions(ctx context.Context, q ListCompetitionsQuery) (*CompetitionPage, error) {
	if q.SortBy == "" {
		q.SortBy = DefaultCompetitionSort
	}
	if q.Order == "" {
		q.Order = "desc"
	}

	verr := NewValidationError()
	if q.Page < 1 {
		verr.Add("page", "must be greater than or equal to 1")
	}
	if q.PageSize < 1 || q.PageSize > MaxCompetitionPageSize {
		verr.Add("pageSize", "must be between 1 and 100")
	}
	if !competitionSortFields[q.SortBy] {
		verr.Add("sortBy", "must be one of name, starts_at, ends_at, city, country_code")
	}
	if q.Order != "asc" && q.Order != "desc" {
		verr.Add("order", "must be asc or desc")
	}
	if !verr.Empty() {
		return nil, verr
	}

	items, total, err := s.competitions.List(ctx, repository.CompetitionListParams{
		Limit:  q.PageSize,
		Offset: (q.Page - 1) * q.PageSize,
		SortBy: q.SortBy,
		Desc:   q.Order == "desc",
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []entity.Competition{}
	}

	return &CompetitionPage{
		Data:       items,
		Pagination: Pagination{Page: q.Page, PageSize: q.PageSize, Total: total},
	}, nil
}
