// Package errors provides the error handling system for the parley chat server.
// It includes structured error types, JSON response formatting, request ID
// tracking and integrated logging with Uber's zap logger.
//
// Every error body carries a "detail" field with a human-readable message,
// so clients can rely on a single key regardless of the error category:
//
//	{"detail": "Chatbot processing failed: throttled", "type": "rate_limit_error", "request_id": "..."}
//
// Basic usage:
//
//	// Simple error response
//	errors.Error(w, "Something went wrong", http.StatusBadRequest)
//
//	// Type-specific error
//	errors.ErrorWithType(w, "Invalid input", errors.ValidationError, http.StatusUnprocessableEntity)
//
// For richer errors use the constructors in types.go.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the default zap logger instance used throughout the package.
// It is initialized to a production configuration but can be overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// A nil logger is ignored.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType represents the category of an error reported to clients.
type ErrorType string

const (
	// ValidationError represents request bodies that are not JSON objects
	// or do not match the expected shape
	ValidationError ErrorType = "validation_error"

	// BadRequestError represents bodies rejected before decoding, such as
	// oversized ones
	BadRequestError ErrorType = "bad_request"

	// InternalError represents unexpected internal server errors
	InternalError ErrorType = "internal_error"

	// ConfigError represents configuration-related errors
	ConfigError ErrorType = "config_error"

	// ProviderError represents failures of the inference provider
	ProviderError ErrorType = "provider_error"

	// RateLimitError represents throttling or quota errors from the provider
	RateLimitError ErrorType = "rate_limit_error"

	// UnavailableError represents a provider that could not be reached
	UnavailableError ErrorType = "unavailable_error"

	// NotFoundError represents resource not found errors
	NotFoundError ErrorType = "not_found"

	// MethodNotAllowedError represents a known path hit with the wrong method
	MethodNotAllowedError ErrorType = "method_not_allowed"
)

// ParleyError is the error type returned to HTTP clients. It is serialized
// to JSON for API responses while keeping the underlying cause for logging.
type ParleyError struct {
	// Message is the human-readable description, exposed as "detail"
	Message string `json:"detail"`

	// Type categorizes the error for client handling
	Type ErrorType `json:"type"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"request_id,omitempty"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`

	// err is the underlying error (not exposed in JSON)
	err error
}

// Error implements the error interface. It returns a string that
// combines the error type, message, and underlying error (if any).
func (e *ParleyError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, implementing the unwrap
// interface for error chains.
func (e *ParleyError) Unwrap() error {
	return e.err
}

// Is implements error matching for errors.Is, allowing type-based
// error matching while ignoring other fields.
func (e *ParleyError) Is(target error) bool {
	t, ok := target.(*ParleyError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WriteError formats and writes a ParleyError to an http.ResponseWriter.
// It sets the appropriate content type and status code, then writes
// the error as a JSON response.
func WriteError(w http.ResponseWriter, err *ParleyError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	if encErr := json.NewEncoder(w).Encode(err); encErr != nil {
		DefaultLogger.Warn("failed to encode error response",
			zap.Error(encErr),
			zap.String("request_id", err.RequestID),
		)
	}
}

// Error is a drop-in replacement for http.Error that creates and writes
// a ParleyError with the InternalError type. It automatically includes
// the request ID from the response headers if available.
func Error(w http.ResponseWriter, message string, code int) {
	ErrorWithType(w, message, InternalError, code)
}

// ErrorWithType is like Error but allows specifying the error type.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	WriteError(w, &ParleyError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: w.Header().Get("X-Request-ID"),
	})
}
