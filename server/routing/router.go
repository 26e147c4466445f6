// Package routing wires the chat server's handlers and middleware onto a chi
// router.
package routing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/teilomillet/parley/config"
	"github.com/teilomillet/parley/errors"
	"github.com/teilomillet/parley/server/handlers"
	"github.com/teilomillet/parley/server/metrics"
	"github.com/teilomillet/parley/server/middleware"
	"go.uber.org/zap"
)

// Router handles HTTP routing for the chat API.
type Router struct {
	router chi.Router
	logger *zap.Logger
}

// NewRouter creates the router with the global middleware stack and the
// fixed route table:
//   - GET  /          liveness
//   - POST /chat      chat completion
//   - GET  <metrics>  Prometheus metrics, when enabled
//
// A nil m disables both request metrics and the metrics route.
func NewRouter(cfg config.MetricsConfig, chat http.Handler, m *metrics.Metrics, logger *zap.Logger) *Router {
	r := &Router{
		router: chi.NewRouter(),
		logger: logger,
	}

	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.RequestTimer)
	r.router.Use(middleware.Logging(logger))
	r.router.Use(middleware.Recovery(logger))
	if m != nil {
		r.router.Use(middleware.PrometheusMetrics(m))
	}

	r.router.NotFound(notFound)
	r.router.MethodNotAllowed(methodNotAllowed)

	r.router.Get("/", handlers.Health)
	r.router.Post("/chat", chat.ServeHTTP)

	if m != nil && cfg.Enabled {
		RegisterMetricsRoutes(r.router, cfg.Path, m)
		logger.Debug("metrics route registered", zap.String("path", cfg.Path))
	}

	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	errors.ErrorWithType(w, "Not Found", errors.NotFoundError, http.StatusNotFound)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	errors.ErrorWithType(w, "Method Not Allowed", errors.MethodNotAllowedError, http.StatusMethodNotAllowed)
}

// ServeHTTP implements the http.Handler interface.
// Delegates request handling to the underlying Chi router.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
