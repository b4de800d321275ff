// Package domain contains domain entities, value objects, and domain-specific errors.
// This package should have no external dependencies except the standard library
// and uuid.
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Domain error types for consistent error handling across the application.
// These errors represent business rule violations and domain constraints.

var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidState is returned when an operation is not allowed in the
	// current lifecycle phase of a resource.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict is returned when there's a conflict with the current state.
	ErrConflict = errors.New("conflict")

	// ErrRateLimited is returned when a principal exceeded its request budget.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthorized is returned when authentication is required but not provided.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the user lacks permission for the operation.
	ErrForbidden = errors.New("forbidden")
)

// Stable machine-readable error codes surfaced to clients.
const (
	CodeRoundNotFound       = "ROUND_NOT_FOUND"
	CodeRoundNotActive      = "ROUND_NOT_ACTIVE"
	CodeRoundTimeInvalid    = "ROUND_TIME_INVALID"
	CodeRoundCreationFailed = "ROUND_CREATION_FAILED"
	CodeTapProcessingFailed = "TAP_PROCESSING_FAILED"
	CodeLockNotAcquired     = "LOCK_NOT_ACQUIRED"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
)

// DomainError wraps a base error with additional context.
// It provides a standard way to add details to domain errors.
type DomainError struct {
	// Base is the underlying error type (e.g., ErrNotFound)
	Base error

	// Code is the stable tag reported to clients; empty means "derive from Base"
	Code string

	// Message provides human-readable context
	Message string

	// Field indicates which field caused the error (for validation errors)
	Field string

	// RetryAfter is set on rate limit errors
	RetryAfter time.Duration

	// Cause is the infrastructure error that triggered this one, if any
	Cause error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Base.Error(), e.Message, e.Field)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Base.Error(), e.Message)
	}
	return e.Base.Error()
}

// Unwrap returns the base error and the cause for errors.Is/As support.
func (e *DomainError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Base, e.Cause}
	}
	return []error{e.Base}
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (e *DomainError) RetryAfterSeconds() int64 {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int64((e.RetryAfter + time.Second - 1) / time.Second)
}

// NewNotFoundError creates a not found error with context.
func NewNotFoundError(resource string) *DomainError {
	return &DomainError{
		Base:    ErrNotFound,
		Message: resource,
	}
}

// NewValidationError creates a validation error for a specific field.
func NewValidationError(field, message string) *DomainError {
	return &DomainError{
		Base:    ErrInvalidInput,
		Message: message,
		Field:   field,
	}
}

// NewConflictError creates a conflict error with context.
func NewConflictError(message string) *DomainError {
	return &DomainError{
		Base:    ErrConflict,
		Message: message,
	}
}

// NewForbiddenError creates a forbidden error with context.
func NewForbiddenError(message string) *DomainError {
	return &DomainError{
		Base:    ErrForbidden,
		Message: message,
	}
}

// NewUnauthorizedError creates an unauthorized error with context.
func NewUnauthorizedError(message string) *DomainError {
	return &DomainError{
		Base:    ErrUnauthorized,
		Message: message,
	}
}

// NewRoundNotFoundError reports a missing round.
func NewRoundNotFoundError(roundID uuid.UUID) *DomainError {
	return &DomainError{
		Base:    ErrNotFound,
		Code:    CodeRoundNotFound,
		Message: fmt.Sprintf("round with ID %s not found", roundID),
	}
}

// NewRoundNotActiveError reports a tap on a round outside its active phase.
func NewRoundNotActiveError(roundID uuid.UUID, status RoundStatus) *DomainError {
	return &DomainError{
		Base:    ErrInvalidState,
		Code:    CodeRoundNotActive,
		Message: fmt.Sprintf("round %s is not active, current status: %s", roundID, status),
	}
}

// NewRoundTimeInvalidError reports a tap whose clock falls outside the round bounds.
func NewRoundTimeInvalidError(message string) *DomainError {
	return &DomainError{
		Base:    ErrInvalidState,
		Code:    CodeRoundTimeInvalid,
		Message: message,
	}
}

// NewRoundCreationError reports a failed round insert.
func NewRoundCreationError(cause error) *DomainError {
	return &DomainError{
		Base:    ErrConflict,
		Code:    CodeRoundCreationFailed,
		Message: "failed to create round",
		Cause:   cause,
	}
}

// NewTapProcessingError reports a tap transaction that did not commit.
func NewTapProcessingError(cause error) *DomainError {
	return &DomainError{
		Base:    ErrConflict,
		Code:    CodeTapProcessingFailed,
		Message: "failed to process tap due to concurrent modification, please try again",
		Cause:   cause,
	}
}

// NewLockNotAcquiredError reports lock acquisition exhaustion.
func NewLockNotAcquiredError(key string, attempts int, cause error) *DomainError {
	return &DomainError{
		Base:    ErrConflict,
		Code:    CodeLockNotAcquired,
		Message: fmt.Sprintf("could not acquire lock %q after %d attempts", key, attempts),
		Cause:   cause,
	}
}

// NewRateLimitedError reports an exhausted request budget.
func NewRateLimitedError(retryAfter time.Duration) *DomainError {
	e := &DomainError{
		Base:       ErrRateLimited,
		Code:       CodeRateLimitExceeded,
		RetryAfter: retryAfter,
	}
	e.Message = fmt.Sprintf("too many requests, try again in %d seconds", e.RetryAfterSeconds())
	return e
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsInvalidState checks if an error is an invalid state error.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsRateLimited checks if an error is a rate limit error.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsForbidden checks if an error is a forbidden error.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsUnauthorized checks if an error is unauthorized.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// CodeOf returns the stable code carried by err, or "" if none.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
