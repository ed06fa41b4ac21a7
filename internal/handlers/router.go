package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"climate-records/pkg/logging"
	"climate-records/pkg/metrics"
)

// RouterOptions configures the HTTP surface around the record handler.
type RouterOptions struct {
	AllowedOrigins    []string
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

// NewRouter registers every route and wraps the router in the middleware chain:
// request ID, access log, CORS, rate limit.
func NewRouter(h *RecordHandler, opts RouterOptions, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) http.Handler {
	router := mux.NewRouter()

	h.RegisterRoutes(router)

	router.HandleFunc("/api/docs", SwaggerUI).Methods(http.MethodGet)
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods(http.MethodGet)
	if opts.MetricsHandler != nil {
		router.Handle("/metrics", opts.MetricsHandler).Methods(http.MethodGet)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metricsCollector.RecordAPIError("not_found", "unmatched")
		writeErrorMessage(w, http.StatusNotFound, "Resource not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metricsCollector.RecordAPIError("method_not_allowed", "unmatched")
		writeErrorMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return chain(router,
		RequestID(),
		AccessLog(router, logger, metricsCollector),
		CORS(opts.AllowedOrigins),
		RateLimit(opts.RateLimitEnabled, opts.RateLimitRequests, opts.RateLimitWindow),
	)
}
