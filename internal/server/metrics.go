package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docrefine_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docrefine_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Enhancement metrics
	tasksSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docrefine_tasks_submitted_total",
			Help: "Total number of enhancement tasks accepted",
		},
	)

	enhancementDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docrefine_enhancement_duration_seconds",
			Help:    "Document enhancement duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		},
	)

	regionsReplaced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docrefine_regions_replaced_total",
			Help: "Total number of text regions replaced by re-recognition",
		},
	)

	enhancementFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docrefine_enhancement_failures_total",
			Help: "Total number of enhancement runs that fell back to the original document",
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docrefine_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)
)
