package fillflow

import "errors"

// Ошибки сессии заполнения
var (
	ErrSessionClosed    = errors.New("fill session is closed")
	ErrNotReady         = errors.New("fill session is not ready")
	ErrAlreadyStarted   = errors.New("fill session already started")
	ErrRatingRequired   = errors.New("overall rating is required to complete the survey")
	ErrInvalidRating    = errors.New("overall rating is out of range")
	ErrSaveInProgress   = errors.New("save already in progress")
	ErrReviewPending    = errors.New("anonymized feedback is awaiting a decision")
	ErrNoPendingReview  = errors.New("no anonymized feedback to review")
	ErrSurveyCompleted  = errors.New("survey response is already completed")
	ErrResponseNotFound = errors.New("survey response could not be resolved")
)

// Сообщения, показываемые пользователю
const (
	msgInitFailed     = "Failed to initialize survey. Please try again."
	msgCheckFailed    = "Could not verify feedback for personal data. Please try again."
	msgCompleteFailed = "Could not complete survey. Check your connection and try again."
	msgSaveFailed     = "Could not save survey. Check your connection and try again."
)
