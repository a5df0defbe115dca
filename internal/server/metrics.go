package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balloonpipe_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "balloonpipe_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Dimension pipeline processing metrics
	processRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balloonpipe_process_requests_total",
			Help: "Total number of process requests",
		},
		[]string{"source", "status"}, // source: upload, websocket
	)

	processDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "balloonpipe_process_duration_seconds",
			Help:    "End-to-end process() duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		},
		[]string{"source"},
	)

	dimensionsDetected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "balloonpipe_dimensions_detected",
			Help:    "Number of fused dimensions returned per request",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"source"},
	)

	pagesProcessed = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "balloonpipe_pages_processed",
			Help:    "Number of pages processed per request",
			Buckets: []float64{1, 2, 5, 10, 15, 20},
		},
		[]string{"source"},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balloonpipe_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour (rate limits), requests, data (daily quotas)
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "balloonpipe_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024, 100 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "balloonpipe_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balloonpipe_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
