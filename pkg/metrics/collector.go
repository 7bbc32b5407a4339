// Package metrics exposes Prometheus metrics for the assistant.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bistro"

// Collector holds the assistant's metrics. All metrics are registered on
// the registry passed to NewCollector.
type Collector struct {
	responsesTotal   *prometheus.CounterVec
	upstreamDuration prometheus.Histogram
	upstreamErrors   *prometheus.CounterVec
	tokensUsed       *prometheus.CounterVec
	cacheEntries     prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewCollector registers the metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		responsesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_responses_total",
				Help:      "Answers returned to guests by source",
			},
			[]string{"source"},
		),
		upstreamDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Chat completion API latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
		upstreamErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_errors_total",
				Help:      "Failed chat completion calls by reason",
			},
			[]string{"reason"},
		),
		tokensUsed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_tokens_total",
				Help:      "Tokens consumed by the chat completion API",
			},
			[]string{"type"}, // prompt, completion
		),
		cacheEntries: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_entries",
				Help:      "Answers currently held in the response cache",
			},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordResponse counts one answer by source.
func (c *Collector) RecordResponse(source string) {
	c.responsesTotal.WithLabelValues(source).Inc()
}

// RecordUpstream records a successful API call.
func (c *Collector) RecordUpstream(d time.Duration, promptTokens, completionTokens int) {
	c.upstreamDuration.Observe(d.Seconds())
	c.tokensUsed.WithLabelValues("prompt").Add(float64(promptTokens))
	c.tokensUsed.WithLabelValues("completion").Add(float64(completionTokens))
}

// RecordUpstreamError counts a failed API call.
func (c *Collector) RecordUpstreamError(reason string) {
	c.upstreamErrors.WithLabelValues(reason).Inc()
}

// SetCacheEntries sets the cache size gauge.
func (c *Collector) SetCacheEntries(n int) {
	c.cacheEntries.Set(float64(n))
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
