// Package apperror defines the error taxonomy of the pricing engine.
// Every failure that reaches a caller is an *AppError carrying a stable
// machine-readable code; HTTP status is derived from the code.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInternal    = "INTERNAL_ERROR"
	CodePersistence = "PERSISTENCE_ERROR"

	// Malformed requests and arithmetic preconditions.
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Markup policy.
	CodeConfigNotFound = "CONFIG_NOT_FOUND"
	CodeZeroNotAllowed = "ZERO_NOT_ALLOWED"
	CodeBelowMinimum   = "BELOW_MINIMUM"
	CodeAboveMaximum   = "ABOVE_MAXIMUM"

	CodeNotFound               = "NOT_FOUND"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeDuplicate              = "DUPLICATE_ENTRY"
	CodeIdempotency            = "IDEMPOTENCY_CONFLICT"

	// A bulk item that never started because its run was cancelled.
	CodeCancelled = "CANCELLED"
)

// StatusClientClosedRequest is the nginx convention for a request abandoned
// by its caller.
const StatusClientClosedRequest = 499

var statusByCode = map[string]int{
	CodeInternal:               http.StatusInternalServerError,
	CodePersistence:            http.StatusInternalServerError,
	CodeValidation:             http.StatusBadRequest,
	CodeInvalidInput:           http.StatusBadRequest,
	CodeConfigNotFound:         http.StatusUnprocessableEntity,
	CodeZeroNotAllowed:         http.StatusUnprocessableEntity,
	CodeBelowMinimum:           http.StatusUnprocessableEntity,
	CodeAboveMaximum:           http.StatusUnprocessableEntity,
	CodeNotFound:               http.StatusNotFound,
	CodeConcurrentModification: http.StatusConflict,
	CodeDuplicate:              http.StatusConflict,
	CodeIdempotency:            http.StatusConflict,
	CodeCancelled:              StatusClientClosedRequest,
}

// AppError is a coded error with optional details and cause.
// Err is never serialized.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"`
}

// New creates an AppError whose HTTP status follows from code.
// Unknown codes map to 500.
func New(code, message string) *AppError {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail sets one detail entry and returns e for chaining.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause records the underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Constructors ---

// NewValidation reports a malformed request or configuration (400).
func NewValidation(message string) *AppError {
	return New(CodeValidation, message)
}

// NewInvalidInput reports a violated arithmetic precondition such as a
// negative cost or a margin of 100% (400). It always indicates a caller bug.
func NewInvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// NewConfigNotFound is returned while the global pricing configuration has
// not been provisioned.
func NewConfigNotFound() *AppError {
	return New(CodeConfigNotFound, "Global pricing configuration is not provisioned")
}

// NewMarkupViolation reports a markup outside the configured policy.
// code must be CodeZeroNotAllowed, CodeBelowMinimum or CodeAboveMaximum.
func NewMarkupViolation(code, message string) *AppError {
	return New(code, message).WithDetail("field", "markup")
}

// NewPersistence wraps a store failure. op names the failed step.
func NewPersistence(op string, err error) *AppError {
	return New(CodePersistence, "Persistence failure").
		WithDetail("operation", op).
		WithCause(err)
}

func NewCancelled(err error) *AppError {
	return New(CodeCancelled, "Operation cancelled before it started").WithCause(err)
}

func NewNotFound(entity string, id any) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity)).
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewConcurrentModification reports a stale version on save.
func NewConcurrentModification(entity string, id any) *AppError {
	return New(CodeConcurrentModification, "Record was modified concurrently. Reload and try again.").
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewInternal hides err from the client; it is only logged.
func NewInternal(err error) *AppError {
	return New(CodeInternal, "Internal server error").WithCause(err)
}

// NewIdempotencyConflict is returned while the first request with key is
// still being processed.
func NewIdempotencyConflict(key string) *AppError {
	return New(CodeIdempotency, "Operation already in progress").
		WithDetail("idempotency_key", key)
}

// NewIdempotencyMismatch is returned when key is reused for a different
// user, route or body.
func NewIdempotencyMismatch(key string) *AppError {
	return New(CodeIdempotency, "Idempotency key reused for a different request").
		WithDetail("idempotency_key", key)
}

func NewDuplicate(entity, field, value string) *AppError {
	return New(CodeDuplicate, fmt.Sprintf("%s with this %s already exists", entity, field)).
		WithDetail("entity", entity).
		WithDetail("field", field).
		WithDetail("value", value)
}

// --- Inspection ---

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError finds the first *AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Code returns the AppError code in the chain, or "" for foreign errors.
func Code(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// GetHTTPStatus returns the status for err; foreign errors are 500.
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

func IsNotFound(err error) bool {
	return Code(err) == CodeNotFound
}

func IsConcurrentModification(err error) bool {
	return Code(err) == CodeConcurrentModification
}

// IsMarkupViolation reports whether err is a zero, below-minimum or
// above-maximum markup rejection.
func IsMarkupViolation(err error) bool {
	switch Code(err) {
	case CodeZeroNotAllowed, CodeBelowMinimum, CodeAboveMaximum:
		return true
	}
	return false
}
