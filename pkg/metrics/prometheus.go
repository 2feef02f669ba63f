// Package metrics provides Prometheus metrics for the homeview web service.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Manager owns the Prometheus collectors for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// Views
	viewRenders       *prometheus.CounterVec
	viewRenderLatency *prometheus.HistogramVec
	templateReloads   *prometheus.CounterVec
	templatesLoaded   prometheus.Gauge

	// Live reload
	liveReloadClients prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	customRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := NewManager(WithPrometheusRegistry(customRegistry))
	if err != nil {
		panic(err)
	}
	globalManager = m
}

// NewManager creates a metrics manager and registers its collectors with the
// configured registry.
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		namespace:        "homeview",
		subsystem:        "web",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	if err := m.Register(m.registry); err != nil {
		return nil, err
	}
	return m, nil
}

// Register adds every collector to reg. It stops at the first collector reg
// refuses, e.g. one whose name it already holds.
func (m *Manager) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("%w: %w", ErrRegister, err)
		}
	}
	return nil
}

func (m *Manager) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.httpRequests,
		m.httpRequestDuration,
		m.errorRateByEndpoint,
		m.viewRenders,
		m.viewRenderLatency,
		m.templateReloads,
		m.templatesLoaded,
		m.liveReloadClients,
	}
}

func (m *Manager) initializeMetrics() {
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_endpoint_total",
		Help:        "Total number of error responses by endpoint",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "error_type"})

	m.viewRenders = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "view_renders_total",
		Help:        "Total number of view render attempts by view and outcome",
		ConstLabels: m.constLabels,
	}, []string{"view", "outcome"})

	m.viewRenderLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "view_render_latency_milliseconds",
		Help:        "Template execution latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"view"})

	m.templateReloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "template_reloads_total",
		Help:        "Total number of template set reloads by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.templatesLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "templates_loaded",
		Help:        "Number of view templates currently parsed",
		ConstLabels: m.constLabels,
	})

	m.liveReloadClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "livereload_clients",
		Help:        "Number of connected live reload websocket clients",
		ConstLabels: m.constLabels,
	})
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint records an error response for an endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordViewRender records a render attempt; outcome is "ok", "not_found" or "error".
func RecordViewRender(view, outcome string) {
	globalManager.viewRenders.WithLabelValues(view, outcome).Inc()
}

// RecordViewRenderLatency records template execution latency in milliseconds.
func RecordViewRenderLatency(view string, latencyMs float64) {
	globalManager.viewRenderLatency.WithLabelValues(view).Observe(latencyMs)
}

// RecordTemplateReload records a template reload; outcome is "ok" or "error".
func RecordTemplateReload(outcome string) {
	globalManager.templateReloads.WithLabelValues(outcome).Inc()
}

// UpdateTemplatesLoaded sets the number of parsed view templates.
func UpdateTemplatesLoaded(count int) {
	globalManager.templatesLoaded.Set(float64(count))
}

// UpdateLiveReloadClients sets the number of connected live reload clients.
func UpdateLiveReloadClients(count int) {
	globalManager.liveReloadClients.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
