// Package metrics provides the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector bundles the application metrics. Construct it once per process;
// the underlying collectors register with the default registry.
type Collector struct {
	// API metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// Outbound fetch metrics
	FetchAttemptsTotal *prometheus.CounterVec
	FetchRetriesTotal  prometheus.Counter
	FetchCacheHits     prometheus.Counter
	FetchCacheMisses   prometheus.Counter

	// Recommendation pipeline metrics
	RecommendationDuration prometheus.Histogram
	RecommendationsTotal   *prometheus.CounterVec
}

// NewCollector creates and registers the application metrics under the given
// namespace.
func NewCollector(namespace string) *Collector {
	return &Collector{
		APIRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
			[]string{"endpoint"},
		),

		FetchAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_attempts_total",
				Help:      "Total number of outbound HTTP attempts by outcome",
			},
			[]string{"outcome"}, // "ok", "retryable", "failed"
		),

		FetchRetriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_retries_total",
				Help:      "Total number of retried outbound HTTP requests",
			},
		),

		FetchCacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_cache_hits_total",
				Help:      "Session cache hits for outbound queries",
			},
		),

		FetchCacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_cache_misses_total",
				Help:      "Session cache misses for outbound queries",
			},
		),

		RecommendationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "recommendation_duration_seconds",
				Help:      "Duration of a full ranking computation in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
		),

		RecommendationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recommendations_total",
				Help:      "Total number of ranking requests by result",
			},
			[]string{"result"}, // "ok", "error"
		),
	}
}

// RecordAPIRequest increments the API request counter.
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	if c == nil {
		return
	}
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordFetchAttempt increments the outbound attempt counter.
func (c *Collector) RecordFetchAttempt(outcome string) {
	if c == nil {
		return
	}
	c.FetchAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordFetchRetry increments the retry counter.
func (c *Collector) RecordFetchRetry() {
	if c == nil {
		return
	}
	c.FetchRetriesTotal.Inc()
}

// RecordCacheHit increments the session cache hit counter.
func (c *Collector) RecordCacheHit() {
	if c == nil {
		return
	}
	c.FetchCacheHits.Inc()
}

// RecordCacheMiss increments the session cache miss counter.
func (c *Collector) RecordCacheMiss() {
	if c == nil {
		return
	}
	c.FetchCacheMisses.Inc()
}

// RecordRecommendation observes one ranking computation.
func (c *Collector) RecordRecommendation(seconds float64, result string) {
	if c == nil {
		return
	}
	c.RecommendationDuration.Observe(seconds)
	c.RecommendationsTotal.WithLabelValues(result).Inc()
}
