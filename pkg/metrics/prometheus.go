// Package metrics provides Prometheus metrics for the catalog ingestion service.
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Pass outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
)

// Duration buckets in milliseconds; passes and fetches run from a few
// milliseconds to minutes.
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000}

// Manager manages all Prometheus metrics for the catalog service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Pass metrics
	passes       *prometheus.CounterVec
	passDuration prometheus.Histogram

	// Row metrics
	rows             prometheus.Counter
	eventsLoaded     prometheus.Counter
	rowsQuarantined  *prometheus.CounterVec
	duplicatesMerged prometheus.Counter

	// Venue metrics
	venueResolutions     *prometheus.CounterVec
	venueIndexSize       prometheus.Gauge
	venueIndexCollisions *prometheus.CounterVec

	// Feed metrics
	feedFetchDuration *prometheus.HistogramVec
	feedFetchErrors   *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	customRegistry.MustRegister(collectors.NewBuildInfoCollector())
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "catalog",
		subsystem:        "ingest",
		histogramBuckets: defaultBuckets,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.passes = m.counterVec("passes_total", "Total number of ingestion passes by outcome", "outcome")
	m.passDuration = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pass_duration_milliseconds",
		Help:      "Ingestion pass duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.rows = m.counter("rows_total", "Total number of raw event rows seen")
	m.eventsLoaded = m.counter("events_loaded_total", "Total number of canonical events produced")
	m.rowsQuarantined = m.counterVec("rows_quarantined_total", "Total number of quarantined rows by reason", "reason")
	m.duplicatesMerged = m.counter("duplicates_merged_total", "Total number of rows merged into an existing event")

	m.venueResolutions = m.counterVec("venue_resolutions_total", "Venue resolutions by matching method", "method")
	m.venueIndexSize = m.gauge("venue_index_size", "Number of venues in the most recent index")
	m.venueIndexCollisions = m.counterVec("venue_index_collisions_total", "Index keys claimed by more than one venue", "key")

	m.feedFetchDuration = m.histogramVec("feed_fetch_duration_milliseconds", "Feed fetch and decode duration in milliseconds", "feed")
	m.feedFetchErrors = m.counterVec("feed_fetch_errors_total", "Feed fetch or decode failures", "feed")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordPass records a finished pass.
func RecordPass(outcome string, durationMs float64) {
	globalManager.passes.WithLabelValues(outcome).Inc()
	globalManager.passDuration.Observe(durationMs)
}

// RecordRows adds n raw rows.
func RecordRows(n int) {
	globalManager.rows.Add(float64(n))
}

// RecordEventsLoaded adds n canonical events.
func RecordEventsLoaded(n int) {
	globalManager.eventsLoaded.Add(float64(n))
}

// RecordQuarantined adds n quarantined rows for reason.
func RecordQuarantined(reason string, n int) {
	globalManager.rowsQuarantined.WithLabelValues(reason).Add(float64(n))
}

// RecordDuplicatesMerged adds n merged duplicates.
func RecordDuplicatesMerged(n int) {
	globalManager.duplicatesMerged.Add(float64(n))
}

// RecordVenueResolution counts one resolution by method ("none" when unresolved).
func RecordVenueResolution(method string) {
	globalManager.venueResolutions.WithLabelValues(method).Inc()
}

// UpdateVenueIndexSize sets the size of the latest venue index.
func UpdateVenueIndexSize(n int) {
	globalManager.venueIndexSize.Set(float64(n))
}

// RecordVenueIndexCollision counts one key collision.
func RecordVenueIndexCollision(key string) {
	globalManager.venueIndexCollisions.WithLabelValues(key).Inc()
}

// RecordFeedFetch records a feed fetch duration.
func RecordFeedFetch(feed string, durationMs float64) {
	globalManager.feedFetchDuration.WithLabelValues(feed).Observe(durationMs)
}

// RecordFeedFetchError counts a failed feed fetch.
func RecordFeedFetchError(feed string) {
	globalManager.feedFetchErrors.WithLabelValues(feed).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap memory in use in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// StartSystemCollector refreshes the system gauges until ctx is done.
func StartSystemCollector(ctx context.Context) {
	collect := func() {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		UpdateSystemMemoryUsage(ms.HeapInuse)
		UpdateSystemGoroutineCount(runtime.NumGoroutine())
	}
	collect()
	go func() {
		ticker := time.NewTicker(globalManager.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect()
			}
		}
	}()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
