package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EnrollmentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facecheck",
		Name:      "enrollments_created_total",
		Help:      "Total number of enrollment records created",
	})

	CheckinAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facecheck",
		Name:      "checkin_attempts_total",
		Help:      "Total check-in attempts by outcome",
	}, []string{"outcome"})

	MatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "facecheck",
		Name:      "match_duration_seconds",
		Help:      "Duration of a full gallery scan",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	GallerySize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facecheck",
		Name:      "gallery_size",
		Help:      "Number of enrollment records in the last loaded gallery",
	})

	ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facecheck",
		Name:      "extraction_duration_seconds",
		Help:      "Duration of image decode / detect / embed stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	EnrollQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facecheck",
		Name:      "enroll_queue_depth",
		Help:      "Number of pending enrollment tasks in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facecheck",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facecheck",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
