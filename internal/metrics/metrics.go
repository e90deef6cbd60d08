package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequests counts calls to Trakt and TMDB by api and outcome.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traktical_upstream_requests_total",
		Help: "Upstream API requests by api and status",
	}, []string{"api", "status"})

	// BatchWindows counts calendar sub-windows dispatched to Trakt.
	BatchWindows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "traktical_batch_windows_total",
		Help: "Calendar sub-windows dispatched to Trakt",
	})

	// FeedBuilds counts calendar builds by kind, format and outcome.
	FeedBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traktical_feed_builds_total",
		Help: "Calendar feed builds by kind, format and outcome",
	}, []string{"kind", "format", "outcome"})

	// FeedCacheHits counts feed responses served from the response cache.
	FeedCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "traktical_feed_cache_hits_total",
		Help: "Feed responses served from cache",
	})

	// TokenRefreshes counts access token refresh attempts by outcome.
	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traktical_token_refresh_total",
		Help: "Access token refreshes by outcome",
	}, []string{"outcome"})

	// RequestDuration observes inbound HTTP request latency per route.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "traktical_http_request_duration_seconds",
		Help:    "Inbound HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)
