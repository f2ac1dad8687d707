package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so storage components can run without a collector.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Node identity metrics
	NodeIDLookups *prometheus.CounterVec
	SaltsCreated  prometheus.Counter

	// Record metrics
	RecordOps      *prometheus.CounterVec
	RecordDuration *prometheus.HistogramVec
	RecordBytes    *prometheus.HistogramVec

	// Shutdown metrics
	ShutdownsPending prometheus.Gauge
	Shutdowns        *prometheus.CounterVec
	ShutdownDuration *prometheus.HistogramVec
	NodesAttached    prometheus.Gauge

	// Lifecycle metrics
	StorageClears       prometheus.Counter
	SitesForgotten      prometheus.Counter
	PrivateSessionsEnds prometheus.Counter
	PrivateNodesPurged  prometheus.Counter

	// Queue metrics
	QueueDepth        prometheus.Gauge
	QueueTaskDuration prometheus.Histogram

	// Circuit breaker
	BreakerTransitions *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	gatherer prometheus.Gatherer
	mu       sync.Mutex
}

// NewMetrics creates a metrics collector registered with reg. Passing nil
// registers against a fresh private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	} else {
		gatherer = prometheus.DefaultGatherer
	}

	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),
		gatherer:  gatherer,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugstore_http_requests_total",
				Help: "Total number of admin HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plugstore_http_request_duration_seconds",
				Help:    "Admin HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		NodeIDLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugstore_nodeid_lookups_total",
				Help: "Total number of node id lookups",
			},
			[]string{"mode", "status"},
		),
		SaltsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "plugstore_salts_created_total",
				Help: "Total number of origin-pair salts created",
			},
		),

		RecordOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugstore_record_ops_total",
				Help: "Total number of record operations",
			},
			[]string{"op", "mode", "status"},
		),
		RecordDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plugstore_record_op_duration_seconds",
				Help:    "Record operation duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"op", "mode"},
		),
		RecordBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plugstore_record_bytes",
				Help:    "Size of record payloads written and read",
				Buckets: prometheus.ExponentialBuckets(16, 4, 10),
			},
			[]string{"op"},
		),

		ShutdownsPending: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "plugstore_shutdowns_pending",
				Help: "Number of nodes currently inside their shutdown grace window",
			},
		),
		Shutdowns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugstore_shutdowns_total",
				Help: "Total number of completed shutdowns by outcome",
			},
			[]string{"outcome"},
		),
		ShutdownDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plugstore_shutdown_duration_seconds",
				Help:    "Time from shutdown request to completion",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2, 3, 5, 10},
			},
			[]string{"outcome"},
		),
		NodesAttached: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "plugstore_nodes_attached",
				Help: "Number of nodes with a live plugin instance",
			},
		),

		StorageClears: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "plugstore_storage_clears_total",
				Help: "Total number of full storage wipes",
			},
		),
		SitesForgotten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "plugstore_sites_forgotten_total",
				Help: "Total number of origin pairs removed by site pattern",
			},
		),
		PrivateSessionsEnds: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "plugstore_private_sessions_ended_total",
				Help: "Total number of private sessions ended",
			},
		),
		PrivateNodesPurged: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "plugstore_private_nodes_purged_total",
				Help: "Total number of private node namespaces purged",
			},
		),

		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "plugstore_queue_depth",
				Help: "Number of tasks waiting on the storage queue",
			},
		),
		QueueTaskDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plugstore_queue_task_duration_seconds",
				Help:    "Time spent executing one storage queue task",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),

		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugstore_breaker_transitions_total",
				Help: "Circuit breaker state transitions",
			},
			[]string{"name", "to"},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "plugstore_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

// Handler returns the Prometheus exposition handler for this collector
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// updateUptime updates the uptime metric periodically
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordNodeIDLookup records a node id derivation
func (m *Metrics) RecordNodeIDLookup(mode, status string) {
	if m == nil {
		return
	}
	m.NodeIDLookups.WithLabelValues(mode, status).Inc()
}

// IncSaltsCreated records a new origin-pair salt
func (m *Metrics) IncSaltsCreated() {
	if m == nil {
		return
	}
	m.SaltsCreated.Inc()
}

// RecordRecordOp records one record store operation
func (m *Metrics) RecordRecordOp(op, mode, status string, duration time.Duration, size int) {
	if m == nil {
		return
	}
	m.RecordOps.WithLabelValues(op, mode, status).Inc()
	m.RecordDuration.WithLabelValues(op, mode).Observe(duration.Seconds())
	if size >= 0 && (op == "put" || op == "get") && status == "success" {
		m.RecordBytes.WithLabelValues(op).Observe(float64(size))
	}
}

// RecordShutdown records a completed shutdown
func (m *Metrics) RecordShutdown(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Shutdowns.WithLabelValues(outcome).Inc()
	m.ShutdownDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SetShutdownsPending sets the number of in-progress shutdowns
func (m *Metrics) SetShutdownsPending(n int) {
	if m == nil {
		return
	}
	m.ShutdownsPending.Set(float64(n))
}

// SetNodesAttached sets the number of attached nodes
func (m *Metrics) SetNodesAttached(n int) {
	if m == nil {
		return
	}
	m.NodesAttached.Set(float64(n))
}

// IncStorageClears records a full storage wipe
func (m *Metrics) IncStorageClears() {
	if m == nil {
		return
	}
	m.StorageClears.Inc()
}

// AddSitesForgotten records origin pairs removed by site pattern
func (m *Metrics) AddSitesForgotten(n int) {
	if m == nil {
		return
	}
	m.SitesForgotten.Add(float64(n))
}

// RecordPrivateSessionEnd records a private session teardown
func (m *Metrics) RecordPrivateSessionEnd(purged int) {
	if m == nil {
		return
	}
	m.PrivateSessionsEnds.Inc()
	m.PrivateNodesPurged.Add(float64(purged))
}

// AddPrivateNodesPurged records deferred purges
func (m *Metrics) AddPrivateNodesPurged(n int) {
	if m == nil {
		return
	}
	m.PrivateNodesPurged.Add(float64(n))
}

// SetQueueDepth sets the storage queue backlog
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// ObserveQueueTask records one queue task execution
func (m *Metrics) ObserveQueueTask(duration time.Duration) {
	if m == nil {
		return
	}
	m.QueueTaskDuration.Observe(duration.Seconds())
}

// RecordBreakerTransition records a circuit breaker state change
func (m *Metrics) RecordBreakerTransition(name, to string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BreakerTransitions.WithLabelValues(name, to).Inc()
}
