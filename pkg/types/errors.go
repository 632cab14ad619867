// Package types defines error types
package types

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrInvalidURL indicates the request URL is not an absolute http(s) URL
	ErrInvalidURL = errors.New("invalid url format")

	// ErrInvalidConfig indicates the client configuration failed validation
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidBody indicates the request body could not be encoded
	ErrInvalidBody = errors.New("invalid request body")

	// ErrClientClosed indicates the client handle was closed
	ErrClientClosed = errors.New("client is closed")
)

// ValidationError reports input rejected before any network call is made.
// It is never retried.
type ValidationError struct {
	// Field is the name of the rejected input
	Field string

	// Value is the rejected value, rendered for diagnostics
	Value string

	// Err is the underlying error
	Err error
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("validation failed for %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("validation failed for %s %q: %v", e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying error
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error
func NewValidationError(field, value string, err error) *ValidationError {
	return &ValidationError{
		Field: field,
		Value: value,
		Err:   err,
	}
}

// TransportError represents a failed transport call: the request never
// produced a status code (connection refused, TLS failure, timeout...).
type TransportError struct {
	// Message is the transport's error message
	Message string

	// Timeout reports whether the failure belongs to the operation-timeout class
	Timeout bool

	// Attempts is the number of transport calls made for the logical request
	Attempts int

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportError creates a transport error from a cause
func NewTransportError(cause error, timeout bool) *TransportError {
	msg := "transport error"
	if cause != nil {
		msg = cause.Error()
	}
	return &TransportError{
		Message: msg,
		Timeout: timeout,
		Cause:   cause,
	}
}

// IsTimeout checks if an error is a transport timeout
func IsTimeout(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Timeout
	}
	return false
}

// IsTransportError checks if an error is a transport error
func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
