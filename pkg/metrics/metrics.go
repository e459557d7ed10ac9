// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	MatchQueriesTotal    *prometheus.CounterVec
	MatchLatency         *prometheus.HistogramVec
	MatchCandidates      prometheus.Histogram
	MatchConfidenceTop   prometheus.Histogram
	SongsIndexedTotal    prometheus.Counter
	PostingsAppended     prometheus.Counter
	PostingLookups       prometheus.Counter
	QueryHashCount       prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		MatchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "match_queries_total",
				Help: "Total match queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		MatchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "match_latency_seconds",
				Help:    "Match query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		MatchCandidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "match_candidates_count",
				Help:    "Number of candidate songs surviving the confidence threshold per query.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
			},
		),
		MatchConfidenceTop: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "match_top_confidence",
				Help:    "Confidence of the best-ranked candidate per non-empty result.",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
		),
		SongsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "songs_indexed_total",
				Help: "Total songs indexed.",
			},
		),
		PostingsAppended: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "postings_appended_total",
				Help: "Total posting entries appended to the inverted index.",
			},
		),
		PostingLookups: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "posting_lookups_total",
				Help: "Total posting-set lookups issued by the matching engine.",
			},
		),
		QueryHashCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "query_hash_count",
				Help:    "Number of fingerprint hashes per match query.",
				Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of match-cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of match-cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.MatchQueriesTotal,
		m.MatchLatency,
		m.MatchCandidates,
		m.MatchConfidenceTop,
		m.SongsIndexedTotal,
		m.PostingsAppended,
		m.PostingLookups,
		m.QueryHashCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
