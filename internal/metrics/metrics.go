// Package metrics holds the Prometheus collectors for the networking and
// caching core. Collectors live on a private registry so the CLI can dump
// exactly these series.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric names
const (
	MetricNameHTTPAttempts     = "tanuki_http_attempts_total"
	MetricNameHTTPRetries      = "tanuki_http_retries_total"
	MetricNameHTTPDuration     = "tanuki_http_request_duration_seconds"
	MetricNameETagHits         = "tanuki_etag_not_modified_total"
	MetricNameCacheLookups     = "tanuki_cache_lookups_total"
	MetricNameTokenRefreshes   = "tanuki_token_refreshes_total"
	MetricNameSupersededLoads  = "tanuki_superseded_loads_total"
	MetricNameMarkdownFallback = "tanuki_markdown_fallback_total"
)

// Label names
const (
	LabelMethod  = "method"
	LabelStatus  = "status"
	LabelResult  = "result"
	LabelOutcome = "outcome"
)

// Cache lookup results
const (
	ResultFresh = "fresh"
	ResultStale = "stale"
	ResultMiss  = "miss"
)

// Token refresh outcomes
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
)

// Registry holds every tanuki collector.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// HTTP metrics
var (
	HTTPAttempts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameHTTPAttempts,
			Help: "Total number of HTTP attempts by method and status class",
		},
		[]string{LabelMethod, LabelStatus},
	)

	HTTPRetries = factory.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameHTTPRetries,
			Help: "Total number of retried HTTP attempts",
		},
	)

	HTTPDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameHTTPDuration,
			Help:    "HTTP attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	NotModified = factory.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameETagHits,
			Help: "Total number of 304 responses to conditional requests",
		},
	)
)

// Cache and token metrics
var (
	CacheLookups = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameCacheLookups,
			Help: "Total number of page cache lookups by result",
		},
		[]string{LabelResult},
	)

	TokenRefreshes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameTokenRefreshes,
			Help: "Total number of refresh-token exchanges by outcome",
		},
		[]string{LabelOutcome},
	)

	SupersededLoads = factory.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameSupersededLoads,
			Help: "Total number of load results discarded because a newer load started",
		},
	)

	MarkdownFallbacks = factory.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameMarkdownFallback,
			Help: "Total number of markdown documents rendered locally after the remote renderer failed",
		},
	)
)

// StatusClass buckets an HTTP status into 2xx/3xx/4xx/5xx, or "error" when
// no response was received.
func StatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "error"
	}
}
