// Package metrics provides Prometheus metrics for the growth assessment service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default bucket layouts.
var (
	defaultLatencyBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}           //nolint:gochecknoglobals // bucket layout
	zScoreBuckets         = []float64{-5, -4, -3, -2.5, -2, -1.5, -1, -0.5, 0, 0.5, 1, 1.5, 2, 2.5, 3, 4, 5} //nolint:gochecknoglobals // bucket layout
	microsecondBuckets    = []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000}                   //nolint:gochecknoglobals // bucket layout
)

// Manager manages all Prometheus metrics for the growth service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Assessment metrics
	assessments       *prometheus.CounterVec
	assessmentErrors  *prometheus.CounterVec
	redFlags          *prometheus.CounterVec
	zScores           *prometheus.HistogramVec
	assessmentLatency prometheus.Histogram
	batchVisits       prometheus.Counter

	// Reference catalog metrics
	catalogTables     prometheus.Gauge
	catalogRows       prometheus.Gauge
	catalogReloads    *prometheus.CounterVec
	catalogLastReload prometheus.Gauge

	// History metrics
	historyWrites       *prometheus.CounterVec
	historyDuplicates   prometheus.Counter
	historyWriteLatency prometheus.Histogram
	historyQueryLatency prometheus.Histogram

	// Queue metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker metrics
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System metrics
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

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "growth",
		subsystem:        "assessment",
		histogramBuckets: defaultLatencyBuckets,
		customLabels:     map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.customLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.assessments = auto.NewCounterVec(m.counterOpts("assessments_total",
		"Successful assessments by measurement type and category"), []string{"measurement_type", "category"})
	m.assessmentErrors = auto.NewCounterVec(m.counterOpts("assessment_errors_total",
		"Rejected assessments by measurement type and error kind"), []string{"measurement_type", "kind"})
	m.redFlags = auto.NewCounterVec(m.counterOpts("red_flags_total",
		"Red flags raised by measurement type, kind and severity"), []string{"measurement_type", "kind", "severity"})
	m.zScores = auto.NewHistogramVec(m.histogramOpts("z_score",
		"Distribution of computed z-scores", zScoreBuckets), []string{"measurement_type"})
	m.assessmentLatency = auto.NewHistogram(m.histogramOpts("assessment_latency_microseconds",
		"Time spent in one assessment in microseconds", microsecondBuckets))
	m.batchVisits = auto.NewCounter(m.counterOpts("batch_visits_total",
		"Visits assessed as a batch"))

	m.catalogTables = auto.NewGauge(m.gaugeOpts("catalog_tables", "Reference tables in the live catalog"))
	m.catalogRows = auto.NewGauge(m.gaugeOpts("catalog_rows", "Reference rows in the live catalog"))
	m.catalogReloads = auto.NewCounterVec(m.counterOpts("catalog_reloads_total",
		"Reference catalog reloads by result"), []string{"result"})
	m.catalogLastReload = auto.NewGauge(m.gaugeOpts("catalog_last_reload_unix",
		"Unix timestamp of the last published catalog"))

	m.historyWrites = auto.NewCounterVec(m.counterOpts("history_writes_total",
		"History records written by result"), []string{"result"})
	m.historyDuplicates = auto.NewCounter(m.counterOpts("history_duplicates_total",
		"Visits skipped because their visit id was already recorded"))
	m.historyWriteLatency = auto.NewHistogram(m.histogramOpts("history_write_latency_milliseconds",
		"History store write latency in milliseconds", m.histogramBuckets))
	m.historyQueryLatency = auto.NewHistogram(m.histogramOpts("history_query_latency_milliseconds",
		"History store query latency in milliseconds", m.histogramBuckets))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the history queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum history queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "History queue size / capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Events enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Events dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Rejected enqueues"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts("queue_processing_latency_milliseconds",
		"Time from enqueue to dequeue in milliseconds", m.histogramBuckets))

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Running history workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Time to persist one event in milliseconds", m.histogramBuckets))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Events the workers failed to persist"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Errors by component and type"), []string{"component", "error_type"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"HTTP errors by endpoint, method and code"), []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap in use in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds",
		"GC pause time in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Assessment metrics.

// RecordAssessment counts a successful assessment.
func RecordAssessment(measurementType, category string) {
	globalManager.assessments.WithLabelValues(measurementType, category).Inc()
}

// RecordAssessmentError counts a rejected assessment.
func RecordAssessmentError(measurementType, kind string) {
	globalManager.assessmentErrors.WithLabelValues(measurementType, kind).Inc()
}

// RecordRedFlag counts a raised red flag.
func RecordRedFlag(measurementType, kind, severity string) {
	globalManager.redFlags.WithLabelValues(measurementType, kind, severity).Inc()
}

// ObserveZScore adds z to the z-score distribution of measurementType.
func ObserveZScore(measurementType string, z float64) {
	globalManager.zScores.WithLabelValues(measurementType).Observe(z)
}

// RecordAssessmentLatency records the duration of one assessment.
func RecordAssessmentLatency(d time.Duration) {
	globalManager.assessmentLatency.Observe(float64(d.Nanoseconds()) / float64(time.Microsecond))
}

// RecordBatchVisit counts a batch assessment.
func RecordBatchVisit() {
	globalManager.batchVisits.Inc()
}

// Catalog metrics.

// UpdateCatalogTables sets the number of live reference tables.
func UpdateCatalogTables(n int) {
	globalManager.catalogTables.Set(float64(n))
}

// UpdateCatalogRows sets the number of live reference rows.
func UpdateCatalogRows(n int) {
	globalManager.catalogRows.Set(float64(n))
}

// UpdateCatalogLastReload sets the publish time of the live catalog.
func UpdateCatalogLastReload(unix float64) {
	globalManager.catalogLastReload.Set(unix)
}

// RecordCatalogReload counts a reload attempt; result is success or failure.
func RecordCatalogReload(result string) {
	globalManager.catalogReloads.WithLabelValues(result).Inc()
}

// History metrics.

// RecordHistoryWrite counts a history write; result is success or failure.
func RecordHistoryWrite(result string) {
	globalManager.historyWrites.WithLabelValues(result).Inc()
}

// RecordHistoryDuplicate counts a visit skipped by deduplication.
func RecordHistoryDuplicate() {
	globalManager.historyDuplicates.Inc()
}

// RecordHistoryWriteLatency records store write latency in milliseconds.
func RecordHistoryWriteLatency(latencyMs float64) {
	globalManager.historyWriteLatency.Observe(latencyMs)
}

// RecordHistoryQueryLatency records store query latency in milliseconds.
func RecordHistoryQueryLatency(latencyMs float64) {
	globalManager.historyQueryLatency.Observe(latencyMs)
}

// Queue metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records time spent waiting in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker metrics.

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records the time to persist one event.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the heap in use in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
