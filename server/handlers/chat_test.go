package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/parley/errors"
	"github.com/teilomillet/parley/server/middleware"
	"github.com/teilomillet/parley/server/mocks"
	"github.com/teilomillet/parley/server/processing"
	"github.com/teilomillet/parley/server/provider"
	"go.uber.org/zap/zaptest"
)

const testMaxBodyBytes = 1 << 20

func newTestHandler(t *testing.T, p provider.Provider) http.Handler {
	t.Helper()
	return newTestHandlerWithLimit(t, p, testMaxBodyBytes)
}

func newTestHandlerWithLimit(t *testing.T, p provider.Provider, maxBodyBytes int64) http.Handler {
	t.Helper()
	proc, err := processing.NewProcessor(p, zaptest.NewLogger(t))
	require.NoError(t, err)
	return middleware.RequestID(NewChatHandler(proc, zaptest.NewLogger(t), maxBodyBytes))
}

func postChat(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestChatHandler verifies the status code and body for each outcome of a
// chat request: a normal reply, a reply without text, provider failures of
// each category and malformed bodies.
func TestChatHandler(t *testing.T) {
	tests := []struct {
		name           string
		provider       *mocks.MockProvider
		body           string
		expectedStatus int
		expectedBody   string
		expectedError  *errors.ErrorResponse
	}{
		{
			name:           "reply text is returned",
			provider:       mocks.NewTextProvider("Hola"),
			body:           `{"language":"spanish","freeform_text":"Hi"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"response":"Hola"}`,
		},
		{
			name:           "reply without text returns placeholder",
			provider:       mocks.NewMockProvider(nil),
			body:           `{"language":"english","freeform_text":"Hi"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"response":"No response generated."}`,
		},
		{
			name:           "empty fields are accepted",
			provider:       mocks.NewTextProvider("ok"),
			body:           `{"language":"","freeform_text":""}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"response":"ok"}`,
		},
		{
			name:           "generic provider failure",
			provider:       mocks.NewErrorProvider(fmt.Errorf("boom")),
			body:           `{"language":"english","freeform_text":"Hi"}`,
			expectedStatus: http.StatusInternalServerError,
			expectedError: &errors.ErrorResponse{
				Detail: "Chatbot processing failed: boom",
				Type:   errors.ProviderError,
			},
		},
		{
			name:           "throttled provider",
			provider:       mocks.NewErrorProvider(fmt.Errorf("%w: ThrottlingException", provider.ErrThrottled)),
			body:           `{"language":"english","freeform_text":"Hi"}`,
			expectedStatus: http.StatusTooManyRequests,
			expectedError: &errors.ErrorResponse{
				Detail: "Chatbot processing failed: throttled: ThrottlingException",
				Type:   errors.RateLimitError,
			},
		},
		{
			name:           "unavailable provider",
			provider:       mocks.NewErrorProvider(fmt.Errorf("%w: connection refused", provider.ErrUnavailable)),
			body:           `{"language":"english","freeform_text":"Hi"}`,
			expectedStatus: http.StatusServiceUnavailable,
			expectedError: &errors.ErrorResponse{
				Type: errors.UnavailableError,
			},
		},
		{
			name:           "unauthenticated provider is a 500",
			provider:       mocks.NewErrorProvider(fmt.Errorf("%w: expired", provider.ErrUnauthenticated)),
			body:           `{"language":"english","freeform_text":"Hi"}`,
			expectedStatus: http.StatusInternalServerError,
			expectedError: &errors.ErrorResponse{
				Type: errors.ProviderError,
			},
		},
		{
			name:           "missing field",
			provider:       mocks.NewTextProvider("unused"),
			body:           `{"language":"english"}`,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError: &errors.ErrorResponse{
				Type: errors.ValidationError,
			},
		},
		{
			name:           "wrong field type",
			provider:       mocks.NewTextProvider("unused"),
			body:           `{"language":1,"freeform_text":"Hi"}`,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError: &errors.ErrorResponse{
				Type: errors.ValidationError,
			},
		},
		{
			name:           "invalid json",
			provider:       mocks.NewTextProvider("unused"),
			body:           `{"language":"english",`,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError: &errors.ErrorResponse{
				Type: errors.ValidationError,
			},
		},
		{
			name:           "non-object body",
			provider:       mocks.NewTextProvider("unused"),
			body:           `["english","Hi"]`,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError: &errors.ErrorResponse{
				Type: errors.ValidationError,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(newTestHandler(t, tt.provider), tt.body)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			if tt.expectedError == nil {
				assert.JSONEq(t, tt.expectedBody, rec.Body.String())
				return
			}

			var resp errors.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.expectedError.Type, resp.Type)
			assert.NotEmpty(t, resp.Detail)
			if tt.expectedError.Detail != "" {
				assert.Equal(t, tt.expectedError.Detail, resp.Detail)
			}
			assert.Equal(t, rec.Header().Get(middleware.RequestIDHeader), resp.RequestID)
		})
	}
}

func TestChatHandlerRejectsBeforeCallingProvider(t *testing.T) {
	mock := mocks.NewTextProvider("unused")
	rec := postChat(newTestHandler(t, mock), `{"freeform_text":"Hi"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, mock.Prompts())
}

func TestChatHandlerSendsPromptVerbatim(t *testing.T) {
	mock := mocks.NewTextProvider("Russia is the largest country in the world.")
	rec := postChat(newTestHandler(t, mock), `{"language":"english","freeform_text":"What is the largest country in the world?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		[]string{"You are a chatbot. You respond in english.\n\nWhat is the largest country in the world?\n\n"},
		mock.Prompts(),
	)
}

// TestChatHandlerConcurrent checks that concurrent requests each receive the
// reply to their own prompt.
func TestChatHandlerConcurrent(t *testing.T) {
	mock := mocks.NewMockProvider(func(ctx context.Context, prompt string) (*provider.Completion, error) {
		return &provider.Completion{Text: "echo:" + prompt, HasText: true}, nil
	})
	h := newTestHandler(t, mock)

	const n = 32
	var wg sync.WaitGroup
	results := make([]*httptest.ResponseRecorder, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = postChat(h, fmt.Sprintf(`{"language":"lang-%d","freeform_text":"text-%d"}`, i, i))
		}(i)
	}
	wg.Wait()

	for i, rec := range results {
		require.Equal(t, http.StatusOK, rec.Code)
		var resp processing.ChatResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "echo:"+processing.FormatPrompt(fmt.Sprintf("lang-%d", i), fmt.Sprintf("text-%d", i)), resp.Response)
	}
	assert.Len(t, mock.Prompts(), n)
}

func TestChatHandlerInvalidJSONDetails(t *testing.T) {
	mock := mocks.NewTextProvider("unused")
	rec := postChat(newTestHandler(t, mock), `not json`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, mock.Prompts())

	var resp errors.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Detail, "Invalid request body")

	fields, ok := resp.Details["fields"].([]interface{})
	require.True(t, ok)
	require.Len(t, fields, 1)
	field := fields[0].(map[string]interface{})
	assert.Equal(t, "body", field["field"])
	assert.Equal(t, "json_invalid", field["code"])
}

func TestChatHandlerBodyLimit(t *testing.T) {
	body := `{"language":"english","freeform_text":"` + strings.Repeat("a", 64) + `"}`

	tests := []struct {
		name           string
		limit          int64
		expectedStatus int
	}{
		{"over the limit", 32, http.StatusRequestEntityTooLarge},
		{"under the limit", 1 << 10, http.StatusOK},
		{"no limit", 0, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := mocks.NewTextProvider("ok")
			rec := postChat(newTestHandlerWithLimit(t, mock, tt.limit), body)
			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedStatus != http.StatusOK {
				assert.Empty(t, mock.Prompts())
			}
		})
	}
}

func TestChatHandlerBodyTooLarge(t *testing.T) {
	body := `{"language":"english","freeform_text":"` + strings.Repeat("a", testMaxBodyBytes) + `"}`
	rec := postChat(newTestHandler(t, mocks.NewTextProvider("unused")), body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
