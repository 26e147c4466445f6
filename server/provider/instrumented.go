package provider

import (
	"context"
	"time"

	"github.com/teilomillet/parley/server/metrics"
)

// Instrumented records call count, latency and token usage for the wrapped
// provider.
type Instrumented struct {
	next    Provider
	metrics *metrics.Metrics
}

// Instrument wraps p so every Generate call is recorded in m. A nil m
// returns p unchanged.
func Instrument(p Provider, m *metrics.Metrics) Provider {
	if m == nil {
		return p
	}
	return &Instrumented{next: p, metrics: m}
}

// Name implements Provider.
func (i *Instrumented) Name() string {
	return i.next.Name()
}

// Generate implements Provider.
func (i *Instrumented) Generate(ctx context.Context, prompt string) (*Completion, error) {
	name := i.next.Name()
	start := time.Now()

	completion, err := i.next.Generate(ctx, prompt)

	i.metrics.InferenceDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	outcome := Kind(err)
	if err == nil && completion != nil && !completion.HasText {
		outcome = "empty"
	}
	i.metrics.InferenceTotal.WithLabelValues(name, outcome).Inc()

	if completion != nil {
		i.metrics.InferenceTokens.WithLabelValues(name, "input").Add(float64(completion.Usage.InputTokens))
		i.metrics.InferenceTokens.WithLabelValues(name, "output").Add(float64(completion.Usage.OutputTokens))
	}

	return completion, err
}
