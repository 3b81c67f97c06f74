package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/yourusername/pilotvoice-api/internal/pkg/errors"
	"github.com/yourusername/pilotvoice-api/pkg/openrouter"
)

// GdprCheckResult - вердикт проверки текста на персональные данные
type GdprCheckResult struct {
	ContainsPersonalData bool     `json:"containsPersonalData"`
	Confidence           float64  `json:"confidence"`
	OriginalText         string   `json:"originalText"`
	AnonymizedText       *string  `json:"anonymizedText"`
	DetectedDataTypes    []string `json:"detectedDataTypes,omitempty"`
}

// Anonymizer проверяет текст и при необходимости возвращает анонимизированную версию
type Anonymizer interface {
	CheckAndAnonymize(ctx context.Context, text string) (*GdprCheckResult, error)
}

// AnonymizationError - единый вид ошибки проверки, оборачивает ErrScreeningFailed
type AnonymizationError struct {
	Reason string
	cause  error
}

func (e *AnonymizationError) Error() string {
	return fmt.Sprintf("Failed to anonymize feedback: %s", e.Reason)
}

// Unwrap позволяет errors.Is(err, apperrors.ErrScreeningFailed) и доступ к исходной причине
func (e *AnonymizationError) Unwrap() []error {
	if e.cause != nil {
		return []error{apperrors.ErrScreeningFailed, e.cause}
	}
	return []error{apperrors.ErrScreeningFailed}
}

// wrapAnonymizationError оборачивает ошибку, не оборачивая повторно AnonymizationError
func wrapAnonymizationError(err error) error {
	var anonErr *AnonymizationError
	if errors.As(err, &anonErr) {
		return anonErr
	}
	return &AnonymizationError{Reason: err.Error(), cause: err}
}

// cleanVerdict возвращается для пустого текста без обращения к LLM
func cleanVerdict(text string) *GdprCheckResult {
	return &GdprCheckResult{
		ContainsPersonalData: false,
		Confidence:           1.0,
		OriginalText:         text,
		AnonymizedText:       nil,
	}
}

// StructuredCompleter - LLM-клиент со структурированным JSON-ответом
type StructuredCompleter interface {
	StructuredCompletion(ctx context.Context, params openrouter.CompletionParams, dest any) error
}

const (
	detectionSchemaName     = "personal_data_detection"
	anonymizationSchemaName = "text_anonymization"

	detectionSystemPrompt = `You are a GDPR compliance assistant. Your task is to detect personal data in user feedback.

Personal data includes:
- Full names or identifiable names (first name + last name, or unique nicknames)
- Email addresses
- Phone numbers
- Physical addresses
- Government IDs or passport numbers
- Any other information that could identify a specific person

Rules:
- Generic terms like "the pilot", "the organizer", "someone" are NOT personal data
- Single common first names without context may not be personal data
- Be conservative: when in doubt about identification, mark as potential personal data
- Provide confidence score based on how certain you are`

	anonymizationSystemPrompt = `You are an anonymization assistant. Your task is to anonymize user feedback while preserving the meaning and tone.

Rules:
- Remove or replace all personal names with generic terms (e.g., "the pilot", "the organizer", "a participant")
- Replace emails with generic descriptions (e.g., "the contact email")
- Replace phone numbers with generic descriptions (e.g., "the phone number")
- Preserve the sentiment and key points of the feedback
- Keep the same language as the input
- Maintain natural flow and readability
- Do not add any explanations or meta-commentary about the anonymization process`
)

var detectionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"containsPersonalData": map[string]any{
			"type":        "boolean",
			"description": "Whether the text contains personal data (names, emails, phone numbers, etc.)",
		},
		"confidence": map[string]any{
			"type":        "number",
			"description": "Confidence level between 0 and 1",
		},
		"detectedDataTypes": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Types of personal data detected (e.g., 'full_name', 'email', 'phone')",
		},
		"explanation": map[string]any{
			"type":        "string",
			"description": "Brief explanation of what personal data was detected",
		},
	},
	"required":             []string{"containsPersonalData", "confidence", "detectedDataTypes", "explanation"},
	"additionalProperties": false,
}

var anonymizationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"anonymizedText": map[string]any{
			"type":        "string",
			"description": "The anonymized version of the input text",
		},
	},
	"required":             []string{"anonymizedText"},
	"additionalProperties": false,
}

// Поля-указатели отличают пропущенный ключ от false/0: пропуск означает сбой проверки
type detectionResponse struct {
	ContainsPersonalData *bool    `json:"containsPersonalData"`
	Confidence           *float64 `json:"confidence"`
	DetectedDataTypes    []string `json:"detectedDataTypes"`
	Explanation          string   `json:"explanation"`
}

type anonymizationResponse struct {
	AnonymizedText *string `json:"anonymizedText"`
}

// AnonymizationService проверяет и анонимизирует отзывы через LLM.
// Запрос анонимизации выполняется только после положительного результата детекции.
type AnonymizationService struct {
	llm    StructuredCompleter
	model  string
	logger *zap.Logger
}

// NewAnonymizationService создает сервис анонимизации
func NewAnonymizationService(llm StructuredCompleter, model string, logger *zap.Logger) *AnonymizationService {
	if model == "" {
		model = openrouter.DefaultModel
	}
	return &AnonymizationService{llm: llm, model: model, logger: logger}
}

// CheckAndAnonymize реализует Anonymizer
func (s *AnonymizationService) CheckAndAnonymize(ctx context.Context, text string) (*GdprCheckResult, error) {
	if strings.TrimSpace(text) == "" {
		return cleanVerdict(text), nil
	}

	result, err := s.checkAndAnonymize(ctx, text)
	if err != nil {
		s.logger.Warn("Personal data screening failed", zap.Error(err))
		return nil, wrapAnonymizationError(err)
	}
	return result, nil
}

func (s *AnonymizationService) checkAndAnonymize(ctx context.Context, text string) (*GdprCheckResult, error) {
	var detection detectionResponse
	err := s.llm.StructuredCompletion(ctx, openrouter.CompletionParams{
		Model:        s.model,
		SystemPrompt: detectionSystemPrompt,
		UserPrompt:   "Analyze this text for personal data:\n\n" + text,
		SchemaName:   detectionSchemaName,
		Schema:       detectionSchema,
		Temperature:  openrouter.Float(0.3),
		MaxTokens:    openrouter.Int(200),
	}, &detection)
	if err != nil {
		return nil, err
	}
	if detection.ContainsPersonalData == nil || detection.Confidence == nil {
		return nil, &AnonymizationError{Reason: "OpenRouter API returned an incomplete detection result"}
	}

	s.logger.Debug("Detection result",
		zap.Bool("contains_personal_data", *detection.ContainsPersonalData),
		zap.Float64("confidence", *detection.Confidence),
		zap.Strings("detected_data_types", detection.DetectedDataTypes),
	)

	result := &GdprCheckResult{
		ContainsPersonalData: *detection.ContainsPersonalData,
		Confidence:           *detection.Confidence,
		OriginalText:         text,
		DetectedDataTypes:    detection.DetectedDataTypes,
	}
	if !result.ContainsPersonalData {
		return result, nil
	}

	var anonymization anonymizationResponse
	err = s.llm.StructuredCompletion(ctx, openrouter.CompletionParams{
		Model:        s.model,
		SystemPrompt: anonymizationSystemPrompt,
		UserPrompt:   "Anonymize this feedback:\n\n" + text,
		SchemaName:   anonymizationSchemaName,
		Schema:       anonymizationSchema,
		Temperature:  openrouter.Float(0.5),
		MaxTokens:    openrouter.Int(1000),
	}, &anonymization)
	if err != nil {
		return nil, err
	}

	if anonymization.AnonymizedText == nil {
		return nil, &AnonymizationError{Reason: "OpenRouter API returned empty anonymized text"}
	}
	anonymized := strings.TrimSpace(*anonymization.AnonymizedText)
	if anonymized == "" {
		return nil, &AnonymizationError{Reason: "OpenRouter API returned empty anonymized text"}
	}
	result.AnonymizedText = &anonymized
	return result, nil
}
