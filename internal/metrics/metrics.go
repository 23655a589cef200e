// Package metrics defines the Prometheus collectors shared by the pipeline
// stages and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	ScopesProcessed     *prometheus.CounterVec
	ScopesFailed        *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	RowsCanonicalized   *prometheus.CounterVec
	Associations        *prometheus.CounterVec
	GeocodeCacheHits    prometheus.Counter
	GeocodeCacheMisses  prometheus.Counter
	GeocodeAPICalls     *prometheus.CounterVec
	SitesCreated        prometheus.Counter
	ResidentialFlagged  prometheus.Counter
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh registry, which keeps tests independent of the global one.
func New(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		ScopesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rainger_scopes_processed_total",
				Help: "Scopes processed by kind and size group.",
			},
			[]string{"kind", "group"},
		),
		ScopesFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rainger_scopes_failed_total",
				Help: "Scopes that returned an error, by kind and size group.",
			},
			[]string{"kind", "group"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rainger_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800},
			},
			[]string{"stage"},
		),
		RowsCanonicalized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rainger_rows_canonicalized_total",
				Help: "Canonical locations produced by source kind.",
			},
			[]string{"kind"},
		),
		Associations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rainger_associations_total",
				Help: "Associations produced by method.",
			},
			[]string{"method"},
		),
		GeocodeCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rainger_geocode_cache_hits_total",
				Help: "Geocode requests answered from cache.",
			},
		),
		GeocodeCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rainger_geocode_cache_misses_total",
				Help: "Geocode requests sent to the vendor.",
			},
		),
		GeocodeAPICalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rainger_geocode_api_calls_total",
				Help: "Vendor geocoding batch calls by status.",
			},
			[]string{"status"},
		),
		SitesCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rainger_sites_created_total",
				Help: "Site clusters created.",
			},
		),
		ResidentialFlagged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rainger_residential_flagged_total",
				Help: "Locations flagged as residential.",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rainger_http_requests_total",
				Help: "HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rainger_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		gatherer: gatherer,
	}

	reg.MustRegister(
		m.ScopesProcessed,
		m.ScopesFailed,
		m.StageDuration,
		m.RowsCanonicalized,
		m.Associations,
		m.GeocodeCacheHits,
		m.GeocodeCacheMisses,
		m.GeocodeAPICalls,
		m.SitesCreated,
		m.ResidentialFlagged,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for these collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveStage records how long a stage took; use with defer.
func (m *Metrics) ObserveStage(stage string) func() {
	timer := prometheus.NewTimer(m.StageDuration.WithLabelValues(stage))
	return func() { timer.ObserveDuration() }
}
