package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется, когда запрос не аутентифицирован.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда у пользователя недостаточно прав для действия.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrConflict используется для конфликтов состояния (например, повторное создание ответа на опрос).
	ErrConflict = errors.New("resource state conflict")

	// ErrScreeningFailed используется, когда проверка текста на персональные данные завершилась ошибкой.
	ErrScreeningFailed = errors.New("personal data screening failed")

	// ErrRateLimited используется, когда пользователь превысил лимит запросов.
	ErrRateLimited = errors.New("too many requests, please try again later")
)
