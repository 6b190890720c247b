// Package metrics provides Prometheus metrics for the drill training core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector used by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Pipeline
	eventsEmitted    *prometheus.CounterVec
	eventsPersisted  *prometheus.CounterVec
	eventsQueued     prometheus.Counter
	eventsFlushed    prometheus.Counter
	eventsDuplicate  prometheus.Counter
	eventsDropped    prometheus.Counter
	softAcks         prometheus.Counter
	persistErrors    *prometheus.CounterVec
	persistLatency   prometheus.Histogram
	pipelineOnline   prometheus.Gauge
	pendingEvents    prometheus.Gauge
	healthChecks     *prometheus.CounterVec
	subscriberErrors *prometheus.CounterVec

	// Runs
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runsAborted   prometheus.Counter
	answers       *prometheus.CounterVec
	responseTime  prometheus.Histogram

	// Leaks and rotation
	leaksDetected *prometheus.CounterVec
	rotations     prometheus.Counter
	catalogItems  prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "drill",
		subsystem:        "core",
		histogramBuckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.eventsEmitted = auto.NewCounterVec(m.counterOpts("events_emitted_total",
		"Events published through the pipeline by kind"), []string{"kind"})
	m.eventsPersisted = auto.NewCounterVec(m.counterOpts("events_persisted_total",
		"Events durably written by kind"), []string{"kind"})
	m.eventsQueued = auto.NewCounter(m.counterOpts("events_queued_total",
		"Authoritative events queued while offline"))
	m.eventsFlushed = auto.NewCounter(m.counterOpts("events_flushed_total",
		"Queued events replayed after reconnect"))
	m.eventsDuplicate = auto.NewCounter(m.counterOpts("events_duplicate_total",
		"Replayed events skipped because their idempotency key was already persisted"))
	m.eventsDropped = auto.NewCounter(m.counterOpts("events_dropped_total",
		"Authoritative events rejected because the pending queue was full"))
	m.softAcks = auto.NewCounter(m.counterOpts("events_soft_ack_total",
		"Events acknowledged locally because the backend schema was missing"))
	m.persistErrors = auto.NewCounterVec(m.counterOpts("persist_errors_total",
		"Persistence failures by class"), []string{"class"})
	m.persistLatency = auto.NewHistogram(m.histogramOpts("persist_latency_milliseconds",
		"Durable store append latency in milliseconds", m.histogramBuckets))
	m.pipelineOnline = auto.NewGauge(m.gaugeOpts("pipeline_online",
		"1 when authoritative recording is available"))
	m.pendingEvents = auto.NewGauge(m.gaugeOpts("pipeline_pending_events",
		"Events waiting in the offline queue"))
	m.healthChecks = auto.NewCounterVec(m.counterOpts("health_checks_total",
		"Pipeline health probes by result"), []string{"result"})
	m.subscriberErrors = auto.NewCounterVec(m.counterOpts("bus_subscriber_errors_total",
		"Bus subscriber failures by kind"), []string{"kind"})

	m.runsStarted = auto.NewCounterVec(m.counterOpts("runs_started_total",
		"Runs started by mode"), []string{"mode"})
	m.runsCompleted = auto.NewCounterVec(m.counterOpts("runs_completed_total",
		"Runs finished by outcome"), []string{"outcome"})
	m.runsAborted = auto.NewCounter(m.counterOpts("runs_aborted_total",
		"Runs aborted before completion"))
	m.answers = auto.NewCounterVec(m.counterOpts("answers_total",
		"Submitted answers by speed tier and correctness"), []string{"tier", "correct"})
	m.responseTime = auto.NewHistogram(m.histogramOpts("response_time_milliseconds",
		"Answer response time in milliseconds",
		[]float64{500, 1000, 2000, 3000, 5000, 7500, 10000, 15000, 30000}))

	m.leaksDetected = auto.NewCounterVec(m.counterOpts("leaks_detected_total",
		"Leak detections by category"), []string{"category"})
	m.rotations = auto.NewCounter(m.counterOpts("rotations_total",
		"Content rotations performed"))
	m.catalogItems = auto.NewGauge(m.gaugeOpts("catalog_items",
		"Catalog items scored in the last rotation"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})
}

// RecordEventEmitted counts an event published through the pipeline.
func RecordEventEmitted(kind string) { globalManager.eventsEmitted.WithLabelValues(kind).Inc() }

// RecordEventPersisted counts a durable write.
func RecordEventPersisted(kind string) { globalManager.eventsPersisted.WithLabelValues(kind).Inc() }

// RecordEventQueued counts an event parked in the offline queue.
func RecordEventQueued() { globalManager.eventsQueued.Inc() }

// RecordEventFlushed counts a replayed event.
func RecordEventFlushed() { globalManager.eventsFlushed.Inc() }

// RecordEventDuplicate counts a replay skipped by the idempotency check.
func RecordEventDuplicate() { globalManager.eventsDuplicate.Inc() }

// RecordEventDropped counts an event rejected by a full queue.
func RecordEventDropped() { globalManager.eventsDropped.Inc() }

// RecordSoftAck counts a missing-schema acknowledgement.
func RecordSoftAck() { globalManager.softAcks.Inc() }

// RecordPersistError counts a persistence failure of the given class.
func RecordPersistError(class string) { globalManager.persistErrors.WithLabelValues(class).Inc() }

// RecordPersistLatency observes the append latency in milliseconds.
func RecordPersistLatency(ms float64) { globalManager.persistLatency.Observe(ms) }

// UpdatePipelineOnline sets the online gauge.
func UpdatePipelineOnline(online bool) {
	v := 0.0
	if online {
		v = 1
	}
	globalManager.pipelineOnline.Set(v)
}

// UpdatePendingEvents sets the pending queue gauge.
func UpdatePendingEvents(n int) { globalManager.pendingEvents.Set(float64(n)) }

// RecordHealthCheck counts a health probe outcome ("ok" or "failed").
func RecordHealthCheck(result string) { globalManager.healthChecks.WithLabelValues(result).Inc() }

// RecordSubscriberError counts an isolated bus subscriber failure.
func RecordSubscriberError(kind string) { globalManager.subscriberErrors.WithLabelValues(kind).Inc() }

// RecordRunStarted counts a started run.
func RecordRunStarted(mode string) { globalManager.runsStarted.WithLabelValues(mode).Inc() }

// RecordRunCompleted counts a finished run by outcome ("pass" or "fail").
func RecordRunCompleted(outcome string) { globalManager.runsCompleted.WithLabelValues(outcome).Inc() }

// RecordRunAborted counts an aborted run.
func RecordRunAborted() { globalManager.runsAborted.Inc() }

// RecordAnswer counts an answer and observes its response time.
func RecordAnswer(tier string, correct bool, responseMs float64) {
	c := "false"
	if correct {
		c = "true"
	}
	globalManager.answers.WithLabelValues(tier, c).Inc()
	globalManager.responseTime.Observe(responseMs)
}

// RecordLeakDetected counts a leak detection.
func RecordLeakDetected(category string) { globalManager.leaksDetected.WithLabelValues(category).Inc() }

// RecordRotation counts a rotation and records the catalog size it scored.
func RecordRotation(items int) {
	globalManager.rotations.Inc()
	globalManager.catalogItems.Set(float64(items))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
