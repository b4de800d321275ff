// Package response defines consistent HTTP response structures.
// All API responses should use these types for consistency.
package response

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tapround/src/core/domain"
)

// Success represents a successful response with data.
type Success struct {
	Data any `json:"data"`
}

// Error represents an error response.
type Error struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	// Code is a machine-readable error code (e.g., "NOT_FOUND", "VALIDATION_ERROR")
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Field is the field that caused the error (for validation errors)
	Field string `json:"field,omitempty"`

	// RequestID is the request ID for debugging
	RequestID string `json:"request_id,omitempty"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Success{Data: data})
}

// Created sends a 201 response with the created resource.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Success{Data: data})
}

// BadRequest sends a 400 response.
func BadRequest(c *gin.Context, message string, requestID string) {
	c.JSON(http.StatusBadRequest, Error{
		Error: ErrorDetail{
			Code:      "BAD_REQUEST",
			Message:   message,
			RequestID: requestID,
		},
	})
}

// ValidationError sends a 400 response for validation failures.
func ValidationError(c *gin.Context, field, message, requestID string) {
	c.JSON(http.StatusBadRequest, Error{
		Error: ErrorDetail{
			Code:      "VALIDATION_ERROR",
			Message:   message,
			Field:     field,
			RequestID: requestID,
		},
	})
}

// Unauthorized sends a 401 response.
func Unauthorized(c *gin.Context, message, requestID string) {
	c.JSON(http.StatusUnauthorized, Error{
		Error: ErrorDetail{
			Code:      "UNAUTHORIZED",
			Message:   message,
			RequestID: requestID,
		},
	})
}

// InternalError sends a 500 response.
func InternalError(c *gin.Context, requestID string) {
	c.JSON(http.StatusInternalServerError, Error{
		Error: ErrorDetail{
			Code:      "INTERNAL_ERROR",
			Message:   "An unexpected error occurred",
			RequestID: requestID,
		},
	})
}

// TooManyRequests sends a 429 response with a Retry-After header in whole seconds.
func TooManyRequests(c *gin.Context, message string, retryAfterSeconds int64, requestID string) {
	c.Header("Retry-After", strconv.FormatInt(retryAfterSeconds, 10))
	c.JSON(http.StatusTooManyRequests, Error{
		Error: ErrorDetail{
			Code:      domain.CodeRateLimitExceeded,
			Message:   message,
			RequestID: requestID,
		},
	})
}

// FromDomainError converts a domain error to an appropriate HTTP response.
// This centralizes error handling and ensures consistent error responses.
// A domain error carrying its own code keeps that code on the wire.
func FromDomainError(c *gin.Context, err error, requestID string) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		InternalError(c, requestID)
		return
	}

	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		TooManyRequests(c, de.Message, de.RetryAfterSeconds(), requestID)
		return
	}
	if status == http.StatusInternalServerError && de.Code == "" {
		InternalError(c, requestID)
		return
	}

	code := de.Code
	if code == "" {
		code = defaultCode(status)
	}
	message := de.Message
	if message == "" {
		message = de.Error()
	}
	c.JSON(status, Error{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Field:     de.Field,
			RequestID: requestID,
		},
	})
}

func statusFor(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsValidationError(err), domain.IsInvalidState(err):
		return http.StatusBadRequest
	case domain.IsConflict(err):
		return http.StatusConflict
	case domain.IsRateLimited(err):
		return http.StatusTooManyRequests
	case domain.IsForbidden(err):
		return http.StatusForbidden
	case domain.IsUnauthorized(err):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func defaultCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusBadRequest:
		return "VALIDATION_ERROR"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	default:
		return "INTERNAL_ERROR"
	}
}
