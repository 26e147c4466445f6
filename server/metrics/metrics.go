package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates Prometheus metrics for the server.
type Metrics struct {
	registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec
	ErrorsTotal     *prometheus.CounterVec

	// Inference call metrics, labelled by provider
	InferenceTotal    *prometheus.CounterVec
	InferenceDuration *prometheus.HistogramVec
	InferenceTokens   *prometheus.CounterVec

	// PromptTokens is the estimated size of formatted prompts
	PromptTokens prometheus.Histogram

	// EmptyResponses counts replies that carried no text and were replaced
	// by the placeholder
	EmptyResponses prometheus.Counter
}

// NewMetrics creates a new Metrics instance with a custom registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parley_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "parley_http_active_requests",
				Help: "Number of currently active HTTP requests",
			},
			[]string{"endpoint"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type"},
		),
		InferenceTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_inference_requests_total",
				Help: "Total number of inference calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		InferenceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parley_inference_duration_seconds",
				Help:    "Duration of inference calls in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
			},
			[]string{"provider"},
		),
		InferenceTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_inference_tokens_total",
				Help: "Tokens reported by the provider, by direction",
			},
			[]string{"provider", "direction"},
		),
		PromptTokens: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "parley_prompt_tokens",
				Help:    "Estimated token count of formatted prompts",
				Buckets: prometheus.ExponentialBuckets(8, 2, 12),
			},
		),
		EmptyResponses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "parley_empty_responses_total",
				Help: "Replies without text that were answered with the placeholder",
			},
		),
	}

	// Register default Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Pre-create the request counters so they are exported before the first request
	m.RequestsTotal.WithLabelValues("/", "200").Add(0)
	m.RequestsTotal.WithLabelValues("/chat", "200").Add(0)

	return m
}

// Registry exposes the underlying registry so tests can gather from it.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns a handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false,
	})
}
