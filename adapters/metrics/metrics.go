// Package metrics provides Prometheus metrics collection for cloudmeter.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for cloudmeter.
type Collector struct {
	// Report metrics
	ReportsTotal     *prometheus.CounterVec
	ReportDuration   prometheus.Histogram
	RecordsProcessed *prometheus.CounterVec

	// Metrics-backend fetches
	DegradedFetches prometheus.Counter

	// Snapshot refreshes
	SnapshotRefreshes     prometheus.Counter
	SnapshotRefreshErrors prometheus.Counter

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a new metrics collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		ReportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cloudmeter",
				Name:      "reports_total",
				Help:      "Total number of usage reports generated",
			},
			[]string{"status"},
		),
		ReportDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "cloudmeter",
				Name:      "report_duration_seconds",
				Help:      "Report generation duration in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		RecordsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cloudmeter",
				Name:      "records_processed_total",
				Help:      "Total number of resource records aggregated",
			},
			[]string{"metric"},
		),
		DegradedFetches: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "cloudmeter",
				Name:      "metrics_fetch_degraded_total",
				Help:      "Object-storage fetches that degraded to an empty result",
			},
		),
		SnapshotRefreshes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "cloudmeter",
				Name:      "snapshot_refreshes_total",
				Help:      "Identity snapshot refreshes",
			},
		),
		SnapshotRefreshErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "cloudmeter",
				Name:      "snapshot_refresh_errors_total",
				Help:      "Identity snapshot refreshes that failed",
			},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "cloudmeter",
				Name:      "config_reloads_total",
				Help:      "Configuration reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "cloudmeter",
				Name:      "config_reload_errors_total",
				Help:      "Configuration reloads that failed",
			},
		),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.Handler()
}
