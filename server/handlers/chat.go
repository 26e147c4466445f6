// Package handlers provides the HTTP handlers of the chat server.
//
// Every handler follows the same shape:
//  1. decode and validate the body
//  2. hand the request to the processing layer
//  3. map failures onto a ParleyError with a "detail" message
//
// Errors are logged with the request id so a client report can be matched to
// the server log.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/teilomillet/parley/errors"
	"github.com/teilomillet/parley/server/middleware"
	"github.com/teilomillet/parley/server/processing"
	"github.com/teilomillet/parley/server/provider"
	"github.com/teilomillet/parley/server/validation"
	"go.uber.org/zap"
)

// ChatHandler serves POST /chat.
type ChatHandler struct {
	processor    *processing.Processor
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewChatHandler creates a new chat handler with the given processor and
// logger. Bodies larger than maxBodyBytes are rejected with 413; zero
// disables the cap.
func NewChatHandler(processor *processing.Processor, logger *zap.Logger, maxBodyBytes int64) *ChatHandler {
	return &ChatHandler{
		processor:    processor,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	req, err := validation.DecodeChatRequest(body)
	if err != nil {
		h.writeError(w, requestID, decodeError(requestID, err))
		return
	}

	resp, err := h.processor.Chat(r.Context(), req)
	if err != nil {
		h.writeError(w, requestID, chatError(requestID, err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode response",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
	}
}

func (h *ChatHandler) writeError(w http.ResponseWriter, requestID string, perr *errors.ParleyError) {
	errors.LogError(h.logger, perr, requestID)
	errors.WriteError(w, perr)
}

// decodeError maps body decoding failures to 413 or 422. Unparseable JSON
// is reported like a schema failure on the whole body.
func decodeError(requestID string, err error) *errors.ParleyError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errors.NewError(errors.BadRequestError, "Request body too large",
			http.StatusRequestEntityTooLarge, requestID, nil, err)
	}

	var schemaErr *validation.SchemaError
	if errors.As(err, &schemaErr) {
		fields := make([]interface{}, 0, len(schemaErr.Fields))
		for _, f := range schemaErr.Fields {
			fields = append(fields, fieldDetail(f.Field, f.Message, f.Code))
		}
		return errors.NewValidationError(requestID, schemaErr.Error(), map[string]interface{}{
			"fields": fields,
		})
	}

	var malformed *validation.MalformedError
	if errors.As(err, &malformed) {
		return errors.NewValidationError(requestID, malformed.Error(), map[string]interface{}{
			"fields": []interface{}{fieldDetail("body", malformed.Err.Error(), "json_invalid")},
		})
	}

	return errors.NewValidationError(requestID, err.Error(), nil)
}

func fieldDetail(field, message, code string) map[string]interface{} {
	return map[string]interface{}{
		"field":   field,
		"message": message,
		"code":    code,
	}
}

// chatError maps provider failures. Throttling and unavailability get their
// own status codes; everything else is a 500. The detail always carries the
// processing failure message.
func chatError(requestID string, err error) *errors.ParleyError {
	msg := err.Error()
	switch {
	case errors.Is(err, provider.ErrThrottled):
		return errors.NewRateLimitError(requestID, msg, err)
	case errors.Is(err, provider.ErrUnavailable):
		return errors.NewUnavailableError(requestID, msg, err)
	default:
		return errors.NewProviderError(requestID, msg, err)
	}
}
