// SPDX-License-Identifier: MPL-2.0

// Package metrics exposes fuzzyhelp activity as Prometheus metrics.
//
// A Recorder implements the observer interfaces of the install gate, the help
// resolver and the session, so wiring it is a matter of passing it to each
// component's WithObserver option.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fuzzyhelp"

// Recorder holds all Prometheus metrics
type Recorder struct {
	registry *prometheus.Registry

	InstallsTotal      *prometheus.CounterVec
	PagesResolvedTotal *prometheus.CounterVec
	CatalogEntries     prometheus.Gauge
	CatalogRebuilds    prometheus.Counter
	QueryDuration      prometheus.Histogram
	QueryResults       prometheus.Histogram

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a Recorder and registers its metrics with registry. A nil
// registry gets a fresh one.
func New(registry *prometheus.Registry) *Recorder {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Recorder{
		registry: registry,

		InstallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "package_installs_total",
				Help:      "Package installs attempted through the gate",
			},
			[]string{"status"},
		),
		PagesResolvedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "help_pages_resolved_total",
				Help:      "Help pages resolved",
			},
			[]string{"result", "cache"},
		),
		CatalogEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_entries",
				Help:      "Entries in the current catalog",
			},
		),
		CatalogRebuilds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_rebuilds_total",
				Help:      "Catalogs that replaced the current one",
			},
		),
		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Time to rank a query, installs included",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .5, 1, 5, 30},
			},
		),
		QueryResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_results",
				Help:      "Results returned per query",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		m.InstallsTotal,
		m.PagesResolvedTotal,
		m.CatalogEntries,
		m.CatalogRebuilds,
		m.QueryDuration,
		m.QueryResults,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Recorder) Registry() *prometheus.Registry { return m.registry }

// InstallFinished counts an install outcome.
func (m *Recorder) InstallFinished(_ string, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.InstallsTotal.WithLabelValues(status).Inc()
}

// PageResolved counts a help page resolution.
func (m *Recorder) PageResolved(found, cached bool) {
	result := "missing"
	if found {
		result = "found"
	}
	cache := "miss"
	if cached {
		cache = "hit"
	}
	m.PagesResolvedTotal.WithLabelValues(result, cache).Inc()
}

// CatalogReplaced records the size of a newly installed catalog.
func (m *Recorder) CatalogReplaced(entries int) {
	m.CatalogEntries.Set(float64(entries))
	m.CatalogRebuilds.Inc()
}

// QueryRanked records one ranked query.
func (m *Recorder) QueryRanked(results int, elapsed time.Duration) {
	m.QueryDuration.Observe(elapsed.Seconds())
	m.QueryResults.Observe(float64(results))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware instruments requests. Routes are labelled by their mux path
// template so /help/{pkg}/{topic} stays a single series.
func (m *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
