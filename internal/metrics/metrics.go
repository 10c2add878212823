package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EndpointResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_endpoint_responses_total",
		Help: "The total number of endpoint responses",
	}, []string{"endpoint", "status_code"})

	// Snapshot store metrics
	SnapshotRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_snapshot_refreshes_total",
		Help: "Total number of crawler snapshot refresh attempts by result",
	}, []string{"result"})

	SnapshotFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "monitor_snapshot_fetch_duration_seconds",
		Help:    "Duration of crawler metrics requests in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
	})

	SnapshotLastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_snapshot_last_success_timestamp_seconds",
		Help: "Unix timestamp of the last successful crawler snapshot",
	})

	ColdStartFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_snapshot_cold_start_fetches_total",
		Help: "Number of synchronous fetches made because no snapshot was stored yet",
	})

	// Dashboard metrics
	WidgetRenders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_widget_renders_total",
		Help: "Total number of widget renders by widget and outcome",
	}, []string{"widget", "outcome"})
)
