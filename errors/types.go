package errors

import (
	"net/http"
)

// NewError creates a new ParleyError with the given parameters.
// It is a general-purpose constructor that allows full control over
// the error's fields. For most cases, use one of the specialized
// constructors below.
//
// Example:
//
//	err := NewError(InternalError, "encoding failed", 500, "req_123", nil, encErr)
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *ParleyError {
	return &ParleyError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewValidationError creates an error for bodies that are not JSON objects,
// are missing fields or carry fields of the wrong type.
//
// Example:
//
//	err := NewValidationError("req_123", "field required", map[string]interface{}{
//	    "field": "language",
//	})
func NewValidationError(requestID, message string, validationDetails map[string]interface{}) *ParleyError {
	return &ParleyError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusUnprocessableEntity,
		RequestID: requestID,
		Details:   validationDetails,
	}
}

// NewRateLimitError creates an error for provider throttling and quota
// exhaustion. The message is shown to the client as-is.
func NewRateLimitError(requestID, message string, err error) *ParleyError {
	return &ParleyError{
		Type:      RateLimitError,
		Message:   message,
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		err:       err,
	}
}

// NewUnavailableError creates an error for a provider that could not be
// reached or reported itself unavailable.
func NewUnavailableError(requestID, message string, err error) *ParleyError {
	return &ParleyError{
		Type:      UnavailableError,
		Message:   message,
		Code:      http.StatusServiceUnavailable,
		RequestID: requestID,
		err:       err,
	}
}

// NewProviderError creates an error for any other provider failure, such as:
//   - rejected credentials
//   - the model refusing the request
//   - a reply that could not be decoded
//
// It maps to 500 so callers see a plain server error with the cause in
// the detail.
//
// Example:
//
//	err := NewProviderError("req_123", "Chatbot processing failed: boom", providerErr)
func NewProviderError(requestID string, message string, err error) *ParleyError {
	return &ParleyError{
		Type:      ProviderError,
		Message:   message,
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}

// NewInternalError creates an internal server error with appropriate defaults.
// Use this for unexpected errors that are not covered by other error types:
//   - Panics
//   - Response encoding failures
//
// Example:
//
//	err := NewInternalError("req_123", encErr)
func NewInternalError(requestID string, err error) *ParleyError {
	return &ParleyError{
		Type:      InternalError,
		Message:   "An internal error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}
