package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the failure categories of the identity service.
// AuthFailed and Conflict deliberately map to 400 rather than 401/409 so the
// HTTP surface never reveals which check rejected the request.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("resource not found")
	ErrPrecondition = errors.New("precondition failed")
	ErrAuthFailed   = errors.New("authentication failed")
	ErrConflict     = errors.New("conflict")
	ErrOperation    = errors.New("operation failed")
	ErrInternal     = errors.New("internal error")
)

// AppError is a structured application error with an HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Validation creates a 400 error for malformed or missing input.
func Validation(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrValidation,
	}
}

// NotFound creates a 404 error for a missing entity.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: message,
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// Precondition creates a 400 error for a valid entity in the wrong state.
func Precondition(message string) *AppError {
	return &AppError{
		Code:    "PRECONDITION_FAILED",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrPrecondition,
	}
}

// AuthFailed creates a 400 error for a failed credential check.
func AuthFailed(message string) *AppError {
	return &AppError{
		Code:    "AUTH_FAILED",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrAuthFailed,
	}
}

// Conflict creates a 400 error for an entity already in a terminal state.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrConflict,
	}
}

// Operation creates a 400 error for a store operation that reported failure.
func Operation(message string) *AppError {
	return &AppError{
		Code:    "OPERATION_FAILED",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrOperation,
	}
}

// Internal creates a 500 error. The caller-facing message is always generic;
// the wrapped cause is only for logs.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an unexpected error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrPrecondition),
		errors.Is(err, ErrAuthFailed),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrOperation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
