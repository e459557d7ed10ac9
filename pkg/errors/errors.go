package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrSongNotFound             = errors.New("song not found")
	ErrStoreUnavailable         = errors.New("store unavailable")
	ErrFingerprinterUnavailable = errors.New("fingerprinter unavailable")
	ErrInvalidInput             = errors.New("invalid input")
	ErrRateLimited              = errors.New("rate limit exceeded")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrInternal                 = errors.New("internal error")
	ErrTimeout                  = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrSongNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrFingerprinterUnavailable),
		errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
