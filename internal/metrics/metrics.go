// Package metrics provides Prometheus metrics collection for the offline cache gateway.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// interceptedPath labels requests served by the intermediary so raw upstream paths never become label values.
const interceptedPath = "intercepted"

var (
	// HTTPRequestDuration tracks HTTP request duration by method, path, and status code.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	// HTTPRequestTotal tracks total HTTP requests by method, path, and status code.
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	// StoreOperationsTotal tracks persistent store operations.
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of persistent store operations",
		},
		[]string{"operation", "result"},
	)

	// StoreSizeBytes tracks the store size observed by the last write or stats call.
	StoreSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_size_bytes",
			Help: "Current persistent store size in bytes",
		},
	)

	// StoreCapacityBytes tracks the configured store budget.
	StoreCapacityBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_capacity_bytes",
			Help: "Configured persistent store budget in bytes",
		},
	)

	// StoreEvictionsTotal tracks entries removed by reason (budget, expired, shrink).
	StoreEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_evictions_total",
			Help: "Total number of entries evicted from the store",
		},
		[]string{"reason"},
	)

	// StrategyOutcomesTotal tracks how each strategy resolved.
	StrategyOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_outcomes_total",
			Help: "Total number of strategy resolutions by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	// InterceptedRequestsTotal tracks intercepted requests by category and cache outcome.
	InterceptedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intercepted_requests_total",
			Help: "Total number of requests handled by the intermediary",
		},
		[]string{"category", "outcome"},
	)

	// UpstreamFetchesTotal tracks upstream fetches by host and result.
	UpstreamFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_fetches_total",
			Help: "Total number of upstream fetches",
		},
		[]string{"host", "result"},
	)

	// UpstreamFetchDuration tracks upstream fetch latency.
	UpstreamFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upstream_fetch_duration_seconds",
			Help:    "Upstream fetch duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// BackgroundTasksTotal tracks detached refresh tasks by result (ok, error, dropped).
	BackgroundTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_tasks_total",
			Help: "Total number of background refresh tasks",
		},
		[]string{"result"},
	)

	// CleanupRunsTotal tracks cleanup passes by result (ok, error, skipped).
	CleanupRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanup_runs_total",
			Help: "Total number of cleanup passes",
		},
		[]string{"result"},
	)

	// CleanupFreedBytesTotal tracks bytes freed by cleanup passes.
	CleanupFreedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cleanup_freed_bytes_total",
			Help: "Total number of bytes freed by cleanup passes",
		},
	)

	// PreloadTasksTotal tracks preload tasks by task and result (ok, error, timeout).
	PreloadTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preload_tasks_total",
			Help: "Total number of preload tasks",
		},
		[]string{"task", "result"},
	)

	// CircuitBreakerState tracks breaker state per name (0 closed, 1 open, 2 half-open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)
)

// PrometheusMiddleware returns a Gin middleware that collects HTTP metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = interceptedPath
		}
		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(duration)
		HTTPRequestTotal.WithLabelValues(method, path, statusCode).Inc()
	}
}

// RecordStoreOperation records a store operation.
func RecordStoreOperation(operation, result string) {
	StoreOperationsTotal.WithLabelValues(operation, result).Inc()
}

// UpdateStoreMetrics updates the store size and capacity gauges.
func UpdateStoreMetrics(size, capacity int64) {
	StoreSizeBytes.Set(float64(size))
	StoreCapacityBytes.Set(float64(capacity))
}

// RecordEvictions records n evicted entries.
func RecordEvictions(reason string, n int) {
	if n > 0 {
		StoreEvictionsTotal.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordStrategyOutcome records how a strategy resolved.
func RecordStrategyOutcome(strategy, outcome string) {
	StrategyOutcomesTotal.WithLabelValues(strategy, outcome).Inc()
}

// RecordInterceptedRequest records an intercepted request.
func RecordInterceptedRequest(category, outcome string) {
	InterceptedRequestsTotal.WithLabelValues(category, outcome).Inc()
}

// RecordUpstreamFetch records an upstream fetch.
func RecordUpstreamFetch(host, result string, duration time.Duration) {
	UpstreamFetchesTotal.WithLabelValues(host, result).Inc()
	UpstreamFetchDuration.Observe(duration.Seconds())
}

// RecordBackgroundTask records a background task result.
func RecordBackgroundTask(result string) {
	BackgroundTasksTotal.WithLabelValues(result).Inc()
}

// RecordCleanup records a cleanup pass.
func RecordCleanup(result string, freed int64) {
	CleanupRunsTotal.WithLabelValues(result).Inc()
	if freed > 0 {
		CleanupFreedBytesTotal.Add(float64(freed))
	}
}

// RecordPreloadTask records a preload task result.
func RecordPreloadTask(task, result string) {
	PreloadTasksTotal.WithLabelValues(task, result).Inc()
}

// SetCircuitBreakerState records a breaker state.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
