package psa

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AuthError indicates the OAuth2 token exchange was refused. It is not
// retryable without new credentials; callers should prompt for a
// reconnect rather than retry.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("authentication failed (status %d): %s", e.Status, e.Body)
	}
	return fmt.Sprintf("authentication failed (status %d)", e.Status)
}

// RateLimitError indicates the remote rejected a call with HTTP 429.
// RetryAfter carries the server's hint when a Retry-After header was
// present; zero means the server gave none. This client never sleeps
// and retries on its own; backoff policy belongs to the caller.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by remote API, retry after %s", e.RetryAfter)
	}
	return "rate limited by remote API"
}

// NotFoundError indicates the remote returned HTTP 404 for an endpoint
type NotFoundError struct {
	Endpoint string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.Endpoint)
}

// APIError is any other non-success remote response, carrying the
// status code and the raw response body
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("remote API error (status %d): %s", e.Status, e.Body)
	}
	return fmt.Sprintf("remote API error (status %d)", e.Status)
}

// FieldError is one field-level problem inside a ValidationError
type FieldError struct {
	Field   string
	Message string
}

// ValidationError carries structured per-field input problems. It is
// raised by code layered on top of the client (merge input validation,
// config checks), never by the client itself.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a single-field validation failure
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// IsAuth reports whether err is an authentication failure
func IsAuth(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

// IsRateLimited reports whether err is a rate-limit rejection
func IsRateLimited(err error) bool {
	var e *RateLimitError
	return errors.As(err, &e)
}

// IsNotFound reports whether err is a missing-resource failure
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsValidation reports whether err is a structured validation failure
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}
