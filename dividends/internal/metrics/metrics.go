package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dividends_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dividends_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"route"},
	)
)

// Cache and ledger
var (
	// CacheLookupsTotal counts single-lookup cache reads by result (hit/miss).
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dividends_cache_lookups_total",
			Help: "Single-lookup cache reads by result",
		},
		[]string{"result"},
	)

	// LedgerScansTotal counts ledger map scans by query shape and status.
	LedgerScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dividends_ledger_scans_total",
			Help: "Ledger map scans by query shape and status",
		},
		[]string{"shape", "status"},
	)

	LedgerScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dividends_ledger_scan_duration_seconds",
			Help:    "Ledger map scan duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"shape"},
	)

	LedgerEntriesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dividends_ledger_entries_skipped_total",
			Help: "Ledger entries dropped because they could not be decoded",
		},
	)
)

// JobsDispatchedTotal counts sentiment staking job submissions by status.
var JobsDispatchedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dividends_jobs_dispatched_total",
		Help: "Sentiment staking jobs submitted by status",
	},
	[]string{"status"},
)
