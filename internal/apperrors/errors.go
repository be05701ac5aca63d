// Package apperrors defines the failure taxonomy shared by the gateway layers
// and maps it onto HTTP problem responses.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError is malformed or missing input at the gateway boundary.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError reported as 400.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Status: http.StatusBadRequest}
}

// UpstreamError is a non-success response from the forecast provider. Status
// and Body are the provider's own, unchanged.
type UpstreamError struct {
	Op     string
	Status int
	Body   []byte
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: provider returned %d: %s", e.Op, e.Status, truncate(string(e.Body), 200))
}

// TransportError means the provider could not be reached or timed out.
type TransportError struct {
	Op      string
	Timeout bool
	Err     error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: provider timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: provider unreachable: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsUpstream reports whether err is an UpstreamError.
func IsUpstream(err error) bool {
	var u *UpstreamError
	return errors.As(err, &u)
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
