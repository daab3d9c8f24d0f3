// Package metrics exposes the Prometheus registry used by trackrecord.
// All metrics are defined in their respective packages (cache, client,
// analytics) to maintain modularity and avoid circular dependencies.
//
// This package provides the /metrics handler and a reference for all
// available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer all packages register with.
// Metrics are registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(Registry, promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - spotify_cache_hits_total (Counter): 304 responses served from a cached record
//   - spotify_cache_misses_total (Counter): Lookups without a cached record
//   - spotify_cache_conditional_requests_total (Counter): Requests sent with If-None-Match
//   - spotify_cache_records (Gauge): Records held by the most recently written store
//
// Request Metrics (pkg/client):
//   - spotify_requests_total{endpoint, status} (Counter): Upstream requests by endpoint and HTTP status
//   - spotify_request_duration_seconds{endpoint} (Histogram): Upstream request duration
//   - spotify_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - spotify_proxy_failures_total{reason} (Counter): Fetches answered with an empty result
//
// Analytics Metrics (pkg/analytics):
//   - analytics_operation_duration_seconds{operation} (Histogram): Operation duration
//
// HTTP Metrics (internal/api):
//   - http_requests_total{route, code} (Counter): Inbound API requests
//
// Example Prometheus Queries:
//
//   # Validation Hit Rate
//   sum(rate(spotify_cache_hits_total[5m])) /
//   sum(rate(spotify_cache_conditional_requests_total[5m]))
//
//   # Degraded Fetches
//   sum by (reason) (rate(spotify_proxy_failures_total[5m]))
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(spotify_request_duration_seconds_bucket[5m]))
