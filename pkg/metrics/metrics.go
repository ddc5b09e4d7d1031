// Package metrics provides Prometheus metrics for the extraction engine.
//
// Counters and histograms are registered once on the default registry and
// shared by all components; a run is a short-lived batch process, so the
// metrics surface stays deliberately small: outbound API traffic, retry
// pressure, and per-stream emission volume.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequests counts outbound API calls by route and response status.
	// Transport failures are recorded with status "error".
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomtap_api_requests_total",
		Help: "Total outbound API requests by route and status",
	}, []string{"route", "status"})

	// RequestRetries counts retry attempts after transient failures
	RequestRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomtap_request_retries_total",
		Help: "Total retried API requests",
	})

	// RateLimitWaits counts calls that blocked on the rate limit window
	RateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomtap_rate_limit_waits_total",
		Help: "Total API calls that waited for rate limit capacity",
	})

	// RecordsEmitted counts records emitted per stream
	RecordsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomtap_records_emitted_total",
		Help: "Total records emitted by stream",
	}, []string{"stream"})

	// DaysSynced counts completed day-units per stream
	DaysSynced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomtap_days_synced_total",
		Help: "Total completed day windows by stream",
	}, []string{"stream"})

	// RequestDuration tracks API request latency by route
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roomtap_request_duration_seconds",
		Help:    "API request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)
