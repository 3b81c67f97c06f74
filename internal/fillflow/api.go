// Package fillflow реализует сессию заполнения опроса: инициализацию ответа,
// отложенное автосохранение черновика, проверку отзыва на персональные данные
// перед завершением и решение пользователя по анонимизированному тексту.
package fillflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yourusername/pilotvoice-api/internal/pkg/nullable"
)

// Response - ответ на опрос в том виде, в котором его отдает HTTP API
type Response struct {
	ID            int64      `json:"id"`
	SurveyID      int64      `json:"survey_id"`
	UserID        string     `json:"user_id"`
	OverallRating *int       `json:"overall_rating"`
	OpenFeedback  *string    `json:"open_feedback"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsCompleted сообщает, что ответ уже отправлен
func (r *Response) IsCompleted() bool {
	return r.CompletedAt != nil
}

// Patch - частичное обновление ответа. Незаданные поля не попадают в тело запроса.
type Patch struct {
	OverallRating nullable.Field[int]
	OpenFeedback  nullable.Field[string]
	CompletedAt   nullable.Field[time.Time]
}

// MarshalJSON кодирует только заданные поля
func (p Patch) MarshalJSON() ([]byte, error) {
	body := make(map[string]interface{}, 3)
	if p.OverallRating.Set {
		body["overall_rating"] = p.OverallRating.Value
	}
	if p.OpenFeedback.Set {
		body["open_feedback"] = p.OpenFeedback.Value
	}
	if p.CompletedAt.Set {
		body["completed_at"] = p.CompletedAt.Value
	}
	return json.Marshal(body)
}

// Verdict - результат проверки отзыва на персональные данные
type Verdict struct {
	ContainsPersonalData bool     `json:"containsPersonalData"`
	Confidence           float64  `json:"confidence"`
	OriginalText         string   `json:"originalText"`
	AnonymizedText       *string  `json:"anonymizedText"`
	DetectedDataTypes    []string `json:"detectedDataTypes,omitempty"`
}

// API - операции над ответом текущего пользователя.
// Ошибки домена возвращаются как сентинелы из internal/pkg/errors.
type API interface {
	// GetMyResponse возвращает nil, nil, если пользователь еще не начинал опрос
	GetMyResponse(ctx context.Context, surveyID int64) (*Response, error)
	CreateResponse(ctx context.Context, surveyID int64) (*Response, error)
	UpdateResponse(ctx context.Context, responseID int64, patch Patch) (*Response, error)
	CheckGDPR(ctx context.Context, text string) (*Verdict, error)
}
