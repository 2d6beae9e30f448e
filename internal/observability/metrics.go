// Package observability holds the process-wide Prometheus collectors and
// OpenTelemetry tracer.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unera_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "unera_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// FeedRankDuration records how long scoring and sorting a candidate set takes.
	FeedRankDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "unera_feed_rank_duration_seconds",
		Help:    "Time spent ranking feed candidates",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	})

	// FeedPostsRanked counts posts passed through the ranker.
	FeedPostsRanked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unera_feed_posts_ranked_total",
		Help: "Total number of posts scored by the feed ranker",
	})

	// FeedUnresolvedAuthors counts candidates whose author could not be loaded.
	FeedUnresolvedAuthors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unera_feed_unresolved_authors_total",
		Help: "Total number of feed candidates ranked without a known author",
	})

	// CacheRequests counts cache-aside lookups by key namespace and result (hit, miss, error).
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unera_cache_requests_total",
		Help: "Cache-aside lookups by key namespace and result",
	}, []string{"namespace", "result"})

	// RateLimitDecisions counts rate limiter outcomes (allowed, rejected, unavailable) by resource.
	RateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unera_rate_limit_decisions_total",
		Help: "Rate limiter decisions by resource and outcome",
	}, []string{"resource", "outcome"})

	// FeedWarmRuns counts scheduled feed precompute runs by status.
	FeedWarmRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unera_feed_warm_runs_total",
		Help: "Scheduled anonymous feed precompute runs by status",
	}, []string{"status"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
