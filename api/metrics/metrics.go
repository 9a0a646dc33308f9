package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sas_chatbot_api_build_info",
			Help: "Build information of the SAS chatbot API",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sas_chatbot_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sas_chatbot_api_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sas_chatbot_api_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sas_chatbot_api_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sas_chatbot_api_db_queries_total",
			Help: "Total number of analytics database queries",
		},
		[]string{"backend", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sas_chatbot_api_db_query_duration_seconds",
			Help:    "Duration of analytics database queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~41s
		},
		[]string{"backend"},
	)

	// Anthropic API metrics
	AnthropicRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sas_chatbot_api_anthropic_requests_total",
			Help: "Total number of Anthropic API requests",
		},
		[]string{"endpoint", "status"},
	)

	AnthropicRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sas_chatbot_api_anthropic_request_duration_seconds",
			Help:    "Duration of Anthropic API requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~410s
		},
		[]string{"endpoint"},
	)

	AnthropicTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sas_chatbot_api_anthropic_tokens_total",
			Help: "Total number of Anthropic API tokens used",
		},
		[]string{"type"}, // "input", "output", "cache_creation", "cache_read"
	)

	// Pipeline metrics
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sas_chatbot_api_pipeline_runs_total",
			Help: "Total number of question pipeline runs by outcome",
		},
		[]string{"outcome"}, // "answered", "extraction_failed", "rejected", "execution_failed", "summary_fallback"
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sas_chatbot_api_pipeline_duration_seconds",
			Help:    "Duration of question pipeline runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	GovernanceRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sas_chatbot_api_governance_rejections_total",
			Help: "Total number of intents rejected by the semantic governance layer",
		},
		[]string{"reason"},
	)

	VisualizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sas_chatbot_api_visualizations_total",
			Help: "Total number of visualizations selected by type",
		},
		[]string{"type"},
	)

	// Coalescing metrics
	CoalesceExecutionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sas_chatbot_api_coalesce_executions_total",
			Help: "Total number of question executions started by the dispatcher",
		},
	)

	CoalesceWaitersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sas_chatbot_api_coalesce_waiters_total",
			Help: "Total number of requests that attached to an in-flight execution",
		},
	)

	CoalesceInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sas_chatbot_api_coalesce_in_flight",
			Help: "Number of distinct questions currently executing",
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			path = rctx.RoutePattern()
		}
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// RecordDBQuery records metrics for an analytics database query.
func RecordDBQuery(backend string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DBQueriesTotal.WithLabelValues(backend, status).Inc()
	DBQueryDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordAnthropicRequest records metrics for an Anthropic API request.
func RecordAnthropicRequest(endpoint string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	AnthropicRequestsTotal.WithLabelValues(endpoint, status).Inc()
	AnthropicRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordAnthropicTokensWithCache records token usage including cache metrics.
func RecordAnthropicTokensWithCache(inputTokens, outputTokens, cacheCreationTokens, cacheReadTokens int64) {
	AnthropicTokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	AnthropicTokensTotal.WithLabelValues("output").Add(float64(outputTokens))
	if cacheCreationTokens > 0 {
		AnthropicTokensTotal.WithLabelValues("cache_creation").Add(float64(cacheCreationTokens))
	}
	if cacheReadTokens > 0 {
		AnthropicTokensTotal.WithLabelValues("cache_read").Add(float64(cacheReadTokens))
	}
}

// RecordPipelineRun records the outcome of one question pipeline run.
func RecordPipelineRun(outcome string, duration time.Duration) {
	PipelineRunsTotal.WithLabelValues(outcome).Inc()
	PipelineDuration.Observe(duration.Seconds())
}

func RecordGovernanceRejection(reason string) {
	GovernanceRejectionsTotal.WithLabelValues(reason).Inc()
}

func RecordVisualization(kind string) {
	VisualizationsTotal.WithLabelValues(kind).Inc()
}
