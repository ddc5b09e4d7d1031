// Package errors provides structured error handling for roomtap.
//
// Every failure that crosses a component boundary carries an ErrorType so
// callers can decide between retrying and aborting without string matching.
// The HTTP taxonomy mirrors the SevenRooms API status codes: transient kinds
// (server, rate_limit, timeout, connection) are retryable, everything else is
// fatal for the operation that produced it.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeAuthentication represents authentication failures (401 or a
	// failed token exchange). Never retried: the credentials won't improve.
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeBadRequest represents malformed requests (400)
	ErrorTypeBadRequest ErrorType = "bad_request"
	// ErrorTypePermission represents permission errors (403)
	ErrorTypePermission ErrorType = "permission"
	// ErrorTypeNotFound represents resource not found errors (404)
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeTimeout represents request timeouts (408 or a client-side deadline)
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConflict represents conflict errors (409)
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeRateLimit represents rate limit errors (429)
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeServer represents upstream 5xx errors
	ErrorTypeServer ErrorType = "server"
	// ErrorTypeConnection represents transport-level connection failures
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeData represents unexpected response shapes: non-JSON bodies,
	// envelopes without a data payload, unclassified statuses
	ErrorTypeData ErrorType = "data"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeState represents checkpoint state persistence errors
	ErrorTypeState ErrorType = "state"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is / errors.As chains
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error and returns it for chaining
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return New(errType, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a type and message, preserving the
// original as the cause. Returns nil if err is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
	}
}

// FromStatusCode builds the typed error for a non-success HTTP response.
// The status code drives classification; msg is the API's error message and
// is kept for diagnostics only.
func FromStatusCode(status int, msg string) *Error {
	var errType ErrorType
	switch {
	case status >= 500:
		errType = ErrorTypeServer
	case status == http.StatusBadRequest:
		errType = ErrorTypeBadRequest
	case status == http.StatusUnauthorized:
		errType = ErrorTypeAuthentication
	case status == http.StatusForbidden:
		errType = ErrorTypePermission
	case status == http.StatusNotFound:
		errType = ErrorTypeNotFound
	case status == http.StatusRequestTimeout:
		errType = ErrorTypeTimeout
	case status == http.StatusConflict:
		errType = ErrorTypeConflict
	case status == http.StatusTooManyRequests:
		errType = ErrorTypeRateLimit
	default:
		errType = ErrorTypeData
	}

	if msg == "" {
		msg = "no error message in response"
	}

	return Newf(errType, "%d --- %s", status, msg).WithDetail("status", status)
}

// IsRetryable returns true if the error is a transient kind worth retrying:
// upstream 5xx, 429, request timeouts, and connection failures.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeServer, ErrorTypeRateLimit, ErrorTypeTimeout, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// TypeOf returns the structured type carried by err, or ErrorTypeData when
// err carries none.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeData
	}
	return e.Type
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}
