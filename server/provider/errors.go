package provider

import (
	"errors"
)

// Errors returned by providers are wrapped around one of these sentinels so
// callers can map them to a response without knowing which backend failed.
var (
	// ErrThrottled indicates the provider rejected the call because of rate
	// or quota limits.
	ErrThrottled = errors.New("throttled")

	// ErrUnavailable indicates a transient failure: network, 5xx, model not
	// ready, timeouts.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrUnauthenticated indicates missing or rejected credentials.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidRequest indicates the provider refused the request itself
	// (unknown model, prompt rejected by validation).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrMalformedResponse indicates a reply that could not be interpreted.
	ErrMalformedResponse = errors.New("malformed response")
)

// Kind returns a short, stable label for err, suitable for metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrThrottled):
		return "throttled"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	default:
		return "error"
	}
}
