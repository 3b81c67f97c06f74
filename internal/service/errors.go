package service

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/yourusername/pilotvoice-api/internal/pkg/errors"
)

// Доменные ошибки сервисов опросов
var (
	ErrSurveyClosed      = fmt.Errorf("%w: survey is not accepting responses", apperrors.ErrForbidden)
	ErrNotResponseOwner  = fmt.Errorf("%w: response belongs to another user", apperrors.ErrForbidden)
	ErrResponseCompleted = fmt.Errorf("%w: response is already completed", apperrors.ErrConflict)
)

// ValidationError содержит ошибки по полям запроса
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError создает пустую ошибку валидации
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add добавляет сообщение для поля
func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

// Empty сообщает, что ошибок не найдено
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrValidation
}
