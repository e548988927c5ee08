package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Standard error types
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrConflict           = errors.New("resource conflict")
	ErrInternal           = errors.New("internal server error")
	ErrValidation         = errors.New("validation error")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidOperation   = errors.New("invalid operation")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrStorage            = errors.New("storage failure")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// StockShortage is the cause carried by an insufficient stock error.
type StockShortage struct {
	Requested int64
	Available int64
}

// ShortBy returns how many units the request exceeded the allocation by.
func (s *StockShortage) ShortBy() int64 {
	return s.Requested - s.Available
}

func (s *StockShortage) Error() string {
	return fmt.Sprintf("requested %d, available %d", s.Requested, s.Available)
}

// Is lets errors.Is match ErrInsufficientStock through the shortage.
func (s *StockShortage) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// InsufficientStock reports that an allocation holds less than requested.
func InsufficientStock(message string, requested, available int64) *AppError {
	shortage := &StockShortage{Requested: requested, Available: available}
	return &AppError{
		Err:        shortage,
		Code:       "INSUFFICIENT_STOCK",
		Message:    message,
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"requested": strconv.FormatInt(requested, 10),
			"available": strconv.FormatInt(available, 10),
			"short_by":  strconv.FormatInt(shortage.ShortBy(), 10),
		},
	}
}

func InvalidOperation(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidOperation,
		Code:       "INVALID_OPERATION",
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// InvariantViolation marks an entity whose stored projection disagrees with
// its allocations. The entity stays refused until reconciled by an operator.
func InvariantViolation(entity, id, message string) *AppError {
	return &AppError{
		Err:        ErrInvariantViolation,
		Code:       "INVARIANT_VIOLATION",
		Message:    fmt.Sprintf("%s %s: %s", entity, id, message),
		StatusCode: http.StatusInternalServerError,
		Details:    map[string]string{"entity": entity, "id": id},
	}
}

// Storage wraps a persistence failure that the caller may retry.
func Storage(err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %w", ErrStorage, err),
		Code:       "STORAGE_ERROR",
		Message:    "storage operation failed",
		StatusCode: http.StatusServiceUnavailable,
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Err:        ErrTokenExpired,
		Code:       "TOKEN_EXPIRED",
		Message:    "token has expired",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:        ErrTokenInvalid,
		Code:       "TOKEN_INVALID",
		Message:    "invalid token",
		StatusCode: http.StatusUnauthorized,
	}
}

// IsRetryable reports whether err is a storage failure worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage)
}

// Code returns the AppError code carried by err, or INTERNAL_ERROR.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "INTERNAL_ERROR"
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
