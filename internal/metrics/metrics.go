// Package metrics exposes the monitor's state as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

// Metrics holds the collectors, registered on a private registry so several
// instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	windowTokens     prometheus.Gauge
	windowPercentage prometheus.Gauge
	tokenLimit       prometheus.Gauge
	alertLevel       prometheus.Gauge

	refreshes      *prometheus.CounterVec
	fragmentErrors prometheus.Counter
	alerts         *prometheus.CounterVec

	refreshDuration prometheus.Histogram
}

// New creates the collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		windowTokens: factory.NewGauge(prometheus.GaugeOpts{
			Name: "usagemon_window_tokens",
			Help: "Tokens used inside the current window",
		}),
		windowPercentage: factory.NewGauge(prometheus.GaugeOpts{
			Name: "usagemon_window_percentage",
			Help: "Window usage as percentage of the token limit (0-100)",
		}),
		tokenLimit: factory.NewGauge(prometheus.GaugeOpts{
			Name: "usagemon_token_limit",
			Help: "Configured token limit of the active plan",
		}),
		alertLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "usagemon_alert_level",
			Help: "Current alert level (0 normal, 1 warning, 2 critical)",
		}),

		refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usagemon_refresh_total",
				Help: "Total number of aggregation passes by trigger",
			},
			[]string{"trigger"},
		),
		fragmentErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "usagemon_fragment_errors_total",
			Help: "Total number of log fragments skipped because they could not be read",
		}),
		alerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usagemon_alerts_total",
				Help: "Total number of alerts by kind and outcome",
			},
			[]string{"kind", "result"},
		),

		refreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "usagemon_refresh_duration_seconds",
			Help:    "Duration of aggregation passes in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
	}
}

// ObserveSnapshot updates the window gauges.
func (m *Metrics) ObserveSnapshot(s models.UsageSnapshot) {
	m.windowTokens.Set(float64(s.TotalTokens))
	m.windowPercentage.Set(s.Percentage)
	m.tokenLimit.Set(float64(s.TokenLimit))
}

// SetAlertLevel records the state machine level.
func (m *Metrics) SetAlertLevel(l models.AlertLevel) {
	m.alertLevel.Set(float64(l))
}

// RecordRefresh records one aggregation pass.
func (m *Metrics) RecordRefresh(trigger string, d time.Duration) {
	m.refreshes.WithLabelValues(trigger).Inc()
	m.refreshDuration.Observe(d.Seconds())
}

// FragmentFailed implements usage.Recorder.
func (m *Metrics) FragmentFailed() {
	m.fragmentErrors.Inc()
}

// Alert outcomes.
const (
	ResultDelivered  = "delivered"
	ResultFailed     = "failed"
	ResultSuppressed = "suppressed"
)

// RecordAlert counts an alert outcome.
func (m *Metrics) RecordAlert(kind models.AlertKind, result string) {
	m.alerts.WithLabelValues(kind.String(), result).Inc()
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
