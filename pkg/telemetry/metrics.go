package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for record store operations.
type Metrics struct {
	config MetricsConfig

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	recordsStored     *prometheus.GaugeVec
	errorsByClass     *prometheus.CounterVec
	events            *prometheus.CounterVec

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// No-op instance: every recorder checks for nil collectors
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of record store operations",
			},
			[]string{"backend", "operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Duration of record store operations in seconds",
				Buckets:   buckets,
			},
			[]string{"backend", "operation"},
		),
		recordsStored: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "records",
				Help:      "Current number of records held in memory",
			},
			[]string{"backend"},
		),
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of store errors by class",
			},
			[]string{"class"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Total number of change events published",
			},
			[]string{"type"},
		),
	}

	collectors := []prometheus.Collector{
		m.operations,
		m.operationDuration,
		m.recordsStored,
		m.errorsByClass,
		m.events,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

// RecordOperation records a store operation with its outcome and duration.
func (m *Metrics) RecordOperation(backend, operation, status string, duration time.Duration) {
	if m.operations == nil {
		return
	}
	m.operations.WithLabelValues(backend, operation, status).Inc()
	m.operationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// SetRecordCount sets the number of records currently held for a backend.
func (m *Metrics) SetRecordCount(backend string, count float64) {
	if m.recordsStored == nil {
		return
	}
	m.recordsStored.WithLabelValues(backend).Set(count)
}

// RecordError records an error by class.
func (m *Metrics) RecordError(class string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(class).Inc()
}

// RecordEvent counts a published change event.
func (m *Metrics) RecordEvent(eventType string) {
	if m.events == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// Registry returns the metrics registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics when a listen
// address is configured.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}

// StopMetricsServer closes the metrics HTTP server if it was started.
func (m *Metrics) StopMetricsServer() error {
	if m.server == nil {
		return nil
	}
	return m.server.Close()
}
