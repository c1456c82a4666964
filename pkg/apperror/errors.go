package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrBadRequest        = errors.New("bad request")
	ErrConflict          = errors.New("conflict")
	ErrInternal          = errors.New("internal server error")
	ErrInvalidInput      = errors.New("invalid input")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Domain errors. Each wraps one of the kinds above so callers can match either.
var (
	ErrSelfVote        = fmt.Errorf("you cannot vote for your own submission: %w", ErrConflict)
	ErrDuplicateVote   = fmt.Errorf("vote already recorded: %w", ErrConflict)
	ErrAlreadyClosed   = fmt.Errorf("challenge is already closed: %w", ErrConflict)
	ErrChallengeClosed = fmt.Errorf("challenge is not accepting submissions: %w", ErrConflict)
	ErrDuplicateBadge  = fmt.Errorf("badge role already configured: %w", ErrConflict)
	ErrDuplicateEntry  = fmt.Errorf("record already exists: %w", ErrConflict)

	ErrInvalidCron     = fmt.Errorf("invalid cron schedule: %w", ErrInvalidInput)
	ErrInvalidReason   = fmt.Errorf("unknown point reason: %w", ErrInvalidInput)
	ErrEmptySubmission = fmt.Errorf("submission needs text, an attachment or a link: %w", ErrInvalidInput)
)

// AppError is a custom error type that can hold an HTTP status code
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// MapErrorToStatus maps common errors to HTTP status codes
func MapErrorToStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrConflict) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrInvalidInput) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrRateLimitExceeded) {
		return http.StatusTooManyRequests
	}
	// Default to internal server error
	return http.StatusInternalServerError
}
