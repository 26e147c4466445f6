package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/teilomillet/parley/server/metrics"
)

// unmatchedEndpoint labels requests no route accepted, keeping label
// cardinality bounded.
const unmatchedEndpoint = "unmatched"

// PrometheusMetrics middleware records HTTP metrics using Prometheus.
// Endpoints are labelled with the chi route pattern, not the raw path.
func PrometheusMetrics(m *metrics.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			endpoint := endpointLabel(r)

			m.ActiveRequests.WithLabelValues(endpoint).Inc()
			defer m.ActiveRequests.WithLabelValues(endpoint).Dec()

			rw := NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			status := rw.Status()
			m.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
			m.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

			if status >= 500 {
				m.ErrorsTotal.WithLabelValues("server_error").Inc()
			} else if status >= 400 {
				m.ErrorsTotal.WithLabelValues("client_error").Inc()
			}
		})
	}
}

// endpointLabel resolves the route pattern for r. Outside a chi router the
// raw path is used.
func endpointLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return r.URL.Path
	}
	tctx := chi.NewRouteContext()
	if !rctx.Routes.Match(tctx, r.Method, r.URL.Path) {
		return unmatchedEndpoint
	}
	return tctx.RoutePattern()
}
