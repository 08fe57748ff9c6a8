// Package metrics instruments the gateway with prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/flowgate/n8n-mcp/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

const (
	namespace       = "n8n_mcp"
	subsystemHTTP   = "http"
	subsystemTools  = "tools"
	subsystemTenant = "tenant"
)

// Metrics holds the gateway's prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	toolCallsTotal *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec

	activeSessions prometheus.GaugeFunc
}

// ActiveSessionCounter reports the current live session count.
type ActiveSessionCounter interface {
	Active() int
}

// New creates the metrics set, registering process and Go collectors.
func New(sessions ActiveSessionCounter) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}))
	m.registry.MustRegister(collectors.NewGoCollector())

	m.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemHTTP,
		Name:      "requests_total",
		Help:      "The total number of HTTP requests.",
	}, []string{"path", "method", "status_code"})
	m.registry.MustRegister(m.httpRequestsTotal)

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystemHTTP,
		Name:      "request_duration_seconds",
		Help:      "Time to serve an HTTP request.",
	}, []string{"path", "method"})
	m.registry.MustRegister(m.httpDuration)

	m.toolCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemTools,
		Name:      "calls_total",
		Help:      "The total number of MCP tool calls.",
	}, []string{"tool", "outcome"})
	m.registry.MustRegister(m.toolCallsTotal)

	m.toolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystemTools,
		Name:      "call_duration_seconds",
		Help:      "Time to execute an MCP tool call.",
	}, []string{"tool"})
	m.registry.MustRegister(m.toolDuration)

	m.activeSessions = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystemTenant,
		Name:      "active_sessions",
		Help:      "The number of live tenant sessions.",
	}, func() float64 {
		if sessions == nil {
			return 0
		}
		return float64(sessions.Active())
	})
	m.registry.MustRegister(m.activeSessions)

	return m
}

// ObserveHTTPRequest records one served HTTP request.
func (m *Metrics) ObserveHTTPRequest(path, method, statusCode string, seconds float64) {
	m.httpRequestsTotal.WithLabelValues(path, method, statusCode).Inc()
	m.httpDuration.WithLabelValues(path, method).Observe(seconds)
}

// ObserveToolCall records one MCP tool call.
func (m *Metrics) ObserveToolCall(tool, outcome string, seconds float64) {
	m.toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(seconds)
}

// Handler returns the /metrics exposition handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Module provides the metrics collectors
var Module = fx.Module("metrics",
	fx.Provide(
		func(m *session.Manager) ActiveSessionCounter { return m },
		New,
	),
)
