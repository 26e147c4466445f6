package provider_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/parley/server/metrics"
	"github.com/teilomillet/parley/server/mocks"
	"github.com/teilomillet/parley/server/provider"
)

func TestInstrumentRecordsOutcomes(t *testing.T) {
	m := metrics.NewMetrics()

	calls := 0
	mock := mocks.NewMockProvider(func(ctx context.Context, prompt string) (*provider.Completion, error) {
		calls++
		switch calls {
		case 1:
			return &provider.Completion{Text: "ok", HasText: true, Usage: provider.Usage{InputTokens: 10, OutputTokens: 2}}, nil
		case 2:
			return &provider.Completion{}, nil
		default:
			return nil, fmt.Errorf("%w: slow down", provider.ErrThrottled)
		}
	})

	p := provider.Instrument(mock, m)
	assert.Equal(t, "mock", p.Name())

	_, err := p.Generate(context.Background(), "a")
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), "b")
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), "c")
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.InferenceTotal.WithLabelValues("mock", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.InferenceTotal.WithLabelValues("mock", "empty")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.InferenceTotal.WithLabelValues("mock", "throttled")))
	assert.Equal(t, float64(10), testutil.ToFloat64(m.InferenceTokens.WithLabelValues("mock", "input")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.InferenceTokens.WithLabelValues("mock", "output")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.InferenceDuration))
}

func TestInstrumentNilMetrics(t *testing.T) {
	mock := mocks.NewMockProvider(nil)
	assert.Same(t, mock, provider.Instrument(mock, nil))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "success", provider.Kind(nil))
	assert.Equal(t, "unavailable", provider.Kind(fmt.Errorf("wrap: %w", provider.ErrUnavailable)))
	assert.Equal(t, "malformed_response", provider.Kind(provider.ErrMalformedResponse))
	assert.Equal(t, "invalid_request", provider.Kind(provider.ErrInvalidRequest))
	assert.Equal(t, "error", provider.Kind(errors.New("x")))
}
