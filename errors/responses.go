// Package errors provides error response utilities.
package errors

import (
	"errors"
)

// ErrorResponse is the decoded form of an error body, used by clients
// and tests that read responses back.
type ErrorResponse struct {
	Detail    string                 `json:"detail"`
	Type      ErrorType              `json:"type"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// As is a wrapper around errors.As for better error type assertion
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is a wrapper around errors.Is so callers importing this package do not
// need the standard library one under another name.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
