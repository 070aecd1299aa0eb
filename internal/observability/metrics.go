package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pickup_dispatch", Name: "resolutions_total", Help: "Nearest-driver resolutions by outcome"},
		[]string{"outcome"}, // found, none, error
	)
	UpstreamErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "pickup_dispatch", Name: "feed_upstream_errors_total", Help: "Failed or malformed live feed fetches"})
	LocationsPublished  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "pickup_dispatch", Name: "locations_published_total", Help: "Driver location updates published to the ingest stream"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pickup_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pickup_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
