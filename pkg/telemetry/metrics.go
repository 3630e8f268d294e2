package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Render outcome labels.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusCanceled = "canceled"
)

// Metrics provides Prometheus metrics for loading and rendering values.
type Metrics struct {
	config MetricsConfig

	// Render metrics
	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	evalErrors     *prometheus.CounterVec
	elisions       *prometheus.CounterVec
	repeated       *prometheus.CounterVec

	// Load metrics
	loads        *prometheus.CounterVec
	loadDuration *prometheus.HistogramVec

	// Store metrics
	derivations prometheus.Counter

	// Session metrics
	activeSessions prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
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

		renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_total",
				Help:      "Total number of value renders",
			},
			[]string{"format", "status"},
		),
		renderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_duration_seconds",
				Help:      "Duration of value rendering in seconds",
				Buckets:   buckets,
			},
			[]string{"format"},
		),
		evalErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_eval_errors_total",
				Help:      "Evaluation errors rendered inline",
			},
			[]string{"format"},
		),
		elisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_elisions_total",
				Help:      "Elision markers emitted because a bound was reached",
			},
			[]string{"format"},
		),
		repeated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_repeated_total",
				Help:      "Repeated markers emitted for already visited containers",
			},
			[]string{"format"},
		),

		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loads_total",
				Help:      "Total number of source loads",
			},
			[]string{"format", "status"},
		),
		loadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "load_duration_seconds",
				Help:      "Duration of source loading in seconds",
				Buckets:   buckets,
			},
			[]string{"format"},
		),

		derivations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "derivations_registered_total",
				Help:      "Derivations registered in the store",
			},
		),

		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Current number of open render sessions",
			},
		),
	}

	registry.MustRegister(
		m.renders,
		m.renderDuration,
		m.evalErrors,
		m.elisions,
		m.repeated,
		m.loads,
		m.loadDuration,
		m.derivations,
		m.activeSessions,
	)

	return m, nil
}

// Render Metrics

// RecordRender records a finished render and the markers it produced.
func (m *Metrics) RecordRender(format, status string, duration time.Duration, evalErrors, elisions, repeated int) {
	if m.renders == nil {
		return
	}
	m.renders.WithLabelValues(format, status).Inc()
	m.renderDuration.WithLabelValues(format).Observe(duration.Seconds())
	m.evalErrors.WithLabelValues(format).Add(float64(evalErrors))
	m.elisions.WithLabelValues(format).Add(float64(elisions))
	m.repeated.WithLabelValues(format).Add(float64(repeated))
}

// Load Metrics

// RecordLoad records a source load with its status and duration.
func (m *Metrics) RecordLoad(format, status string, duration time.Duration) {
	if m.loads == nil {
		return
	}
	m.loads.WithLabelValues(format, status).Inc()
	m.loadDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// Store Metrics

// RecordDerivation counts a derivation registered in the store.
func (m *Metrics) RecordDerivation() {
	if m.derivations == nil {
		return
	}
	m.derivations.Inc()
}

// Session Metrics

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	if m.activeSessions == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	if m.activeSessions == nil {
		return
	}
	m.activeSessions.Dec()
}

// Registry returns the underlying registry, nil when metrics are disabled.
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

// StartMetricsServer starts an HTTP server to expose metrics. It does
// nothing when metrics are disabled or no listen address is configured.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Log error but don't fail the application
			FromContext(context.Background()).WithError(err).Error("metrics server stopped")
		}
	}()

	return nil
}
