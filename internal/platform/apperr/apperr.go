// Package apperr defines the error taxonomy shared by handlers, services and
// the HTTP error handler. Each constructor pairs a sentinel with the status
// code and the message that is safe to show a caller.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// AppError is an error that knows how it should be rendered over HTTP.
type AppError struct {
	Err        error  `json:"-"`
	Message    string `json:"message"`
	Code       string `json:"code"`
	HTTPStatus int    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Validation reports a malformed query bound or a missing required field.
func Validation(message string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Message:    message,
		Code:       "VALIDATION_ERROR",
		HTTPStatus: http.StatusBadRequest,
	}
}

// Unauthenticated reports a request without a usable identity.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthenticated,
		Message:    message,
		Code:       "UNAUTHENTICATED",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden reports an authenticated caller missing the required role.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Message:    message,
		Code:       "FORBIDDEN",
		HTTPStatus: http.StatusForbidden,
	}
}

func NotFound(message string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Message:    message,
		Code:       "NOT_FOUND",
		HTTPStatus: http.StatusNotFound,
	}
}

// StorageUnavailable wraps a record store failure. The cause stays on the
// error chain for logging; Message is the only text a caller ever sees.
func StorageUnavailable(cause error) *AppError {
	err := ErrStorageUnavailable
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrStorageUnavailable, cause)
	}
	return &AppError{
		Err:        err,
		Message:    "storage unavailable",
		Code:       "STORAGE_UNAVAILABLE",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// As returns the AppError on err's chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
