package openrouter

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey возвращается, если клиент создается без ключа
var ErrMissingAPIKey = errors.New("OpenRouter API key is missing. The service cannot be initialized")

// APIError - ответ API со статусом вне 2xx
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	return e.Message
}

// ValidationError - ответ API не удалось разобрать или он не соответствует схеме
type ValidationError struct {
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// NetworkError - запрос не дошел до API или ответ не был прочитан
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return "Network request failed. Please check your connection."
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

func statusMessage(status int, details string) string {
	switch status {
	case 401:
		return "Invalid API Key. Please check your OpenRouter API key configuration."
	case 429:
		return "Rate limit exceeded. Please try again later."
	case 500, 502, 503:
		return "OpenRouter service is temporarily unavailable. Please try again later."
	default:
		if details != "" {
			return fmt.Sprintf("API request failed with status %d: %s", status, details)
		}
		return fmt.Sprintf("API request failed with status %d", status)
	}
}
