package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. Each Metrics instance carries
// its own registry so tests can build collectors without colliding on
// the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsSpawned prometheus.Counter
	SpawnFailures   prometheus.Counter
	SessionExits    *prometheus.CounterVec

	// PTY I/O metrics
	PTYReadBytes  prometheus.Counter
	PTYWriteBytes prometheus.Counter
	Resizes       prometheus.Counter

	// Event delivery metrics
	EventsEmitted *prometheus.CounterVec
	EventsDropped *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON surfaces - tracks current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for JSON surfaces such as the
// health endpoint.
type Snapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	AvgDurationMS  float64 `json:"avg_duration_ms"`
	ActiveSessions int64   `json:"active_sessions"`
	UptimeSeconds  float64 `json:"uptime_seconds"`

	totalDuration float64
	requestCount  int64
}

// NewMetrics creates a new metrics collector backed by its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	m := &Metrics{
		registry:  registry,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termbridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termbridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termbridge_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termbridge_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Session metrics
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termbridge_sessions_active",
				Help: "Number of live terminal sessions",
			},
		),
		SessionsSpawned: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termbridge_sessions_spawned_total",
				Help: "Total number of terminal sessions spawned",
			},
		),
		SpawnFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termbridge_spawn_failures_total",
				Help: "Total number of failed session spawns",
			},
		),
		SessionExits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termbridge_session_exits_total",
				Help: "Total number of reader loop terminations by cause",
			},
			[]string{"cause"},
		),

		// PTY I/O metrics
		PTYReadBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termbridge_pty_read_bytes_total",
				Help: "Total bytes read from PTY masters",
			},
		),
		PTYWriteBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termbridge_pty_write_bytes_total",
				Help: "Total bytes written to PTY masters",
			},
		),
		Resizes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termbridge_resizes_total",
				Help: "Total number of PTY resize operations",
			},
		),

		// Event delivery metrics
		EventsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termbridge_events_emitted_total",
				Help: "Total number of session events emitted",
			},
			[]string{"type"},
		),
		EventsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termbridge_events_dropped_total",
				Help: "Total number of events dropped by overloaded sinks",
			},
			[]string{"sink"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termbridge_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termbridge_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termbridge_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric.
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	m.snapshot.requestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordSpawn records a successful session spawn.
func (m *Metrics) RecordSpawn() {
	m.SessionsSpawned.Inc()
}

// RecordSpawnFailure records a failed session spawn.
func (m *Metrics) RecordSpawnFailure() {
	m.SpawnFailures.Inc()
}

// RecordSessionExit records a reader loop termination. Cause is one of
// "eof", "read_error", or "close".
func (m *Metrics) RecordSessionExit(cause string) {
	m.SessionExits.WithLabelValues(cause).Inc()
}

// SetSessionsActive sets the number of live sessions.
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveSessions = int64(count)
	m.mu.Unlock()
}

// AddPTYRead records bytes read from a PTY master.
func (m *Metrics) AddPTYRead(n int) {
	m.PTYReadBytes.Add(float64(n))
}

// AddPTYWrite records bytes written to a PTY master.
func (m *Metrics) AddPTYWrite(n int) {
	m.PTYWriteBytes.Add(float64(n))
}

// RecordResize records a PTY resize operation.
func (m *Metrics) RecordResize() {
	m.Resizes.Inc()
}

// RecordEvent records an emitted session event by type.
func (m *Metrics) RecordEvent(eventType string) {
	m.EventsEmitted.WithLabelValues(eventType).Inc()
}

// RecordEventDropped records an event dropped by a saturated sink.
func (m *Metrics) RecordEventDropped(sink string) {
	m.EventsDropped.WithLabelValues(sink).Inc()
}

// IncWSConnections increments WebSocket connections.
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections.
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// RecordWSMessage records a WebSocket message.
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}
