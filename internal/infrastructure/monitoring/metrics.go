package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/codeshell/internal/providers/terminal"
)

// Metrics holds all Prometheus metrics. Each instance owns its registry so
// servers built in tests never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Terminal metrics
	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionClosures *prometheus.CounterVec
	CommandsTotal   *prometheus.CounterVec
	CommandDuration prometheus.Histogram

	// Service metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current metric values for the JSON API
type MetricsSnapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	ActiveSessions  int64   `json:"active_sessions"`
	TotalCommands   int64   `json:"total_commands"`
	FailedCommands  int64   `json:"failed_commands"`
	ActiveWSClients int64   `json:"active_ws_clients"`
	AvgRequestMs    float64 `json:"avg_request_ms"`
	UptimeSeconds   float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Terminal metrics
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "terminal_sessions_active",
				Help: "Number of live shell sessions",
			},
		),
		SessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "terminal_sessions_created_total",
				Help: "Total number of shell sessions started",
			},
		),
		SessionClosures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "terminal_session_closures_total",
				Help: "Total number of shell sessions stopped, by reason",
			},
			[]string{"reason"},
		),
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "terminal_commands_total",
				Help: "Total number of completed commands, by outcome",
			},
			[]string{"status"},
		),
		CommandDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "terminal_command_duration_seconds",
				Help:    "Time from submission to result, queueing included",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),

		// Service metrics
		ServiceCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "service_calls_total",
				Help: "Total number of tool calls",
			},
			[]string{"service", "tool", "status"},
		),
		ServiceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "service_duration_seconds",
				Help:    "Tool call duration in seconds",
				Buckets: []float64{.001, .01, .1, .5, 1, 5, 30, 60},
			},
			[]string{"service", "tool"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ws_connections_active",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordServiceCall records a tool call
func (m *Metrics) RecordServiceCall(service, tool, status string, duration time.Duration) {
	m.ServiceCalls.WithLabelValues(service, tool, status).Inc()
	m.ServiceDuration.WithLabelValues(service, tool).Observe(duration.Seconds())
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveWSClients++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveWSClients--
	m.mu.Unlock()
}

// SessionOpened implements terminal.Observer
func (m *Metrics) SessionOpened() {
	m.SessionsActive.Inc()
	m.SessionsCreated.Inc()
	m.mu.Lock()
	m.snapshot.ActiveSessions++
	m.mu.Unlock()
}

// SessionClosed implements terminal.Observer
func (m *Metrics) SessionClosed(kind terminal.ErrorKind) {
	m.SessionsActive.Dec()
	m.SessionClosures.WithLabelValues(string(kind)).Inc()
	m.mu.Lock()
	m.snapshot.ActiveSessions--
	m.mu.Unlock()
}

// CommandCompleted implements terminal.Observer
func (m *Metrics) CommandCompleted(status string, duration time.Duration) {
	m.CommandsTotal.WithLabelValues(status).Inc()
	m.CommandDuration.Observe(duration.Seconds())
	m.mu.Lock()
	m.snapshot.TotalCommands++
	if status == terminal.StatusFailed {
		m.snapshot.FailedCommands++
	}
	m.mu.Unlock()
}

// WatchPending exports the number of commands awaiting results, read from
// fn at scrape time. Call it once per Metrics.
func (m *Metrics) WatchPending(fn func() int) {
	promauto.With(m.registry).NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "terminal_commands_pending",
			Help: "Number of submitted commands without a result",
		},
		func() float64 { return float64(fn()) },
	)
}

// Snapshot returns current values for the JSON API
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	snap := m.snapshot
	m.mu.RUnlock()

	if snap.TotalRequests > 0 {
		snap.AvgRequestMs = snap.totalDuration / float64(snap.TotalRequests) * 1000
	}
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}

var _ terminal.Observer = (*Metrics)(nil)
