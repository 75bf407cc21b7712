package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard.
type Metrics struct {
	// Source loading metrics.
	RowsLoaded       prometheus.Counter
	RowsDropped      *prometheus.CounterVec // labels: reason={missing_country,invalid_iso3,unknown_iso3,invalid_date,invalid_count,short_row}
	SnapshotLoads    *prometheus.CounterVec // labels: outcome={success,missing,error}
	DatasetCountries prometheus.Gauge

	// Snapshot cache metrics.
	CacheLookups       *prometheus.CounterVec // labels: result={hit,miss}
	CacheInvalidations prometheus.Counter

	// View computation metrics.
	ViewDuration *prometheus.HistogramVec // labels: view

	// Scraper metrics.
	ScrapeChecks    *prometheus.CounterVec // labels: outcome={updated,current,forced,error}
	ScrapeDownloads *prometheus.CounterVec // labels: file, outcome={success,error}

	// Refresh fan-out metrics.
	WebsocketClients     prometheus.Gauge
	RefreshNotifications *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all dashboard metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsLoaded,
		m.RowsDropped,
		m.SnapshotLoads,
		m.DatasetCountries,
		m.CacheLookups,
		m.CacheInvalidations,
		m.ViewDuration,
		m.ScrapeChecks,
		m.ScrapeDownloads,
		m.WebsocketClients,
		m.RefreshNotifications,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "covid_dashboard",
			Name:      "rows_loaded_total",
			Help:      "Total CSV rows accepted into a snapshot.",
		}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_dashboard",
			Name:      "rows_dropped_total",
			Help:      "CSV rows dropped during loading, by reason.",
		}, []string{"reason"}),
		SnapshotLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_dashboard",
			Name:      "snapshot_loads_total",
			Help:      "Source file loads by outcome.",
		}, []string{"outcome"}),
		DatasetCountries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "covid_dashboard",
			Name:      "dataset_countries",
			Help:      "Number of countries in the current snapshot.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_dashboard",
			Name:      "cache_lookups_total",
			Help:      "Snapshot cache lookups by result.",
		}, []string{"result"}),
		CacheInvalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "covid_dashboard",
			Name:      "cache_invalidations_total",
			Help:      "Snapshot cache invalidations.",
		}),
		ViewDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "covid_dashboard",
			Name:      "view_duration_seconds",
			Help:      "Time spent recomputing a dashboard view.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"view"}),
		ScrapeChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_dashboard",
			Name:      "scrape_checks_total",
			Help:      "Upstream commit checks by outcome.",
		}, []string{"outcome"}),
		ScrapeDownloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_dashboard",
			Name:      "scrape_downloads_total",
			Help:      "CSV downloads by file and outcome.",
		}, []string{"file", "outcome"}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "covid_dashboard",
			Name:      "websocket_clients",
			Help:      "Connected refresh-notification clients.",
		}),
		RefreshNotifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_dashboard",
			Name:      "refresh_notifications_total",
			Help:      "Refresh events published to the message bus by outcome.",
		}, []string{"outcome"}),
	}
}
