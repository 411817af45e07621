package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// APIError is returned when the server answers with a status >= 400.
// Code and Message are taken from a {code, message} body when present.
type APIError struct {
	Status  int
	Code    string
	Message string
	Body    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, strings.TrimSpace(e.Body))
}

// ErrorCode classifies the failure by status class.
func (e *APIError) ErrorCode() string {
	if e.Status >= 500 {
		return "ERR_BAD_RESPONSE"
	}
	return "ERR_BAD_REQUEST"
}

// ServerCode returns the code the server put in the body.
func (e *APIError) ServerCode() string { return e.Code }

// ServerMessage returns the message the server put in the body.
func (e *APIError) ServerMessage() string { return e.Message }

// TransportError wraps failures below HTTP: DNS, refused connections, timeouts,
// unreadable bodies.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("API request failed: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrorCode implements the code lookup used by async.Normalize.
func (e *TransportError) ErrorCode() string { return "ERR_NETWORK" }

// ValidationError is returned before any network call when a request body
// fails validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, rule := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s (%s)", field, rule))
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

// ErrorCode implements the code lookup used by async.Normalize.
func (e *ValidationError) ErrorCode() string { return "ERR_VALIDATION" }

func newValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate request: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return &ValidationError{Fields: fields}
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is an API 401.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
