// Package metrics provides Prometheus metrics for the ratingforces service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency buckets in milliseconds for upstream calls, which are much slower
// than in-process work.
var upstreamBuckets = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals // fixed bucket layout

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec

	// Upstream Metrics - Codeforces API calls
	upstreamRequests          *prometheus.CounterVec
	upstreamLatency           *prometheus.HistogramVec
	circuitBreakerState       *prometheus.GaugeVec
	circuitBreakerTransitions *prometheus.CounterVec

	// Cache Metrics
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEvictions prometheus.Counter
	cacheEntries   prometheus.Gauge

	// Engine Metrics - rating resolution and performance calculation
	ratingResolutions       *prometheus.CounterVec
	ratingBatches           prometheus.Counter
	performanceCalculations prometheus.Counter
	performanceNotFound     prometheus.Counter
	performanceLatency      prometheus.Histogram

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager. Metrics are registered on the
// default Prometheus registerer unless WithPrometheusRegistry is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ratingforces",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total number of error responses by endpoint",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_type_total",
			Help:      "Total number of error responses by type and severity",
		},
		[]string{"error_type", "severity"},
	)

	m.upstreamRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "upstream_requests_total",
			Help:      "Total number of upstream API calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	m.upstreamLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "upstream_latency_milliseconds",
			Help:      "Upstream API call latency in milliseconds",
			Buckets:   upstreamBuckets,
		},
		[]string{"method"},
	)

	m.circuitBreakerState = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	m.circuitBreakerTransitions = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_hits_total",
		Help:      "Total number of result cache hits",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_misses_total",
		Help:      "Total number of result cache misses, including expired entries",
	})

	m.cacheEvictions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_evictions_total",
		Help:      "Total number of cache entries removed by expiry, delete or flush",
	})

	m.cacheEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_entries",
		Help:      "Current number of entries held by the result cache",
	})

	m.ratingResolutions = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "rating_resolutions_total",
			Help:      "Total number of contest rating resolutions by source",
		},
		[]string{"source"},
	)

	m.ratingBatches = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rating_fallback_batches_total",
		Help:      "Total number of user profile batches fetched by the fallback path",
	})

	m.performanceCalculations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "performance_calculations_total",
		Help:      "Total number of performance ratings computed",
	})

	m.performanceNotFound = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "performance_not_found_total",
		Help:      "Total number of queried handles absent from contest standings",
	})

	m.performanceLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "performance_calculation_milliseconds",
		Help:      "Binary search duration in milliseconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100},
	})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "Current memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Current number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint increments the error counter for an endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType increments the error counter for a type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordUpstreamRequest counts one upstream call; outcome is success, api_error,
// failure or rejected.
func RecordUpstreamRequest(method, outcome string) {
	globalManager.upstreamRequests.WithLabelValues(method, outcome).Inc()
}

// RecordUpstreamLatency records upstream call latency in milliseconds.
func RecordUpstreamLatency(method string, latencyMs float64) {
	globalManager.upstreamLatency.WithLabelValues(method).Observe(latencyMs)
}

// UpdateCircuitBreakerState sets the numeric breaker state for name.
func UpdateCircuitBreakerState(name string, state float64) {
	globalManager.circuitBreakerState.WithLabelValues(name).Set(state)
}

// RecordCircuitBreakerTransition counts a breaker state change.
func RecordCircuitBreakerTransition(name, from, to string) {
	globalManager.circuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// RecordCacheEvictions adds n to the eviction counter.
func RecordCacheEvictions(n int) {
	if n > 0 {
		globalManager.cacheEvictions.Add(float64(n))
	}
}

// UpdateCacheEntries sets the current cache size.
func UpdateCacheEntries(count int) {
	globalManager.cacheEntries.Set(float64(count))
}

// RecordRatingResolution counts a completed rating resolution by source.
func RecordRatingResolution(source string) {
	globalManager.ratingResolutions.WithLabelValues(source).Inc()
}

// RecordRatingBatch counts one fallback user profile batch.
func RecordRatingBatch() {
	globalManager.ratingBatches.Inc()
}

// RecordPerformanceCalculation counts a computed performance and its latency.
func RecordPerformanceCalculation(latencyMs float64) {
	globalManager.performanceCalculations.Inc()
	globalManager.performanceLatency.Observe(latencyMs)
}

// RecordPerformanceNotFound counts a queried handle absent from standings.
func RecordPerformanceNotFound() {
	globalManager.performanceNotFound.Inc()
}

// UpdateSystemMemoryUsage updates the system memory usage metric.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates the goroutine count metric.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom registry the global metrics live on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
