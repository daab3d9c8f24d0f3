package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks 304 Not Modified responses answered from a stored record
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spotify_cache_hits_total",
			Help: "Total number of upstream 304 responses served from cache",
		},
	)

	// CacheMisses tracks lookups for keys with no stored record
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spotify_cache_misses_total",
			Help: "Total number of cache lookups without a stored record",
		},
	)

	// ConditionalRequests tracks requests sent with If-None-Match
	ConditionalRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spotify_cache_conditional_requests_total",
			Help: "Total number of conditional requests sent upstream",
		},
	)

	// CacheRecords tracks the number of records held by the most recently written store
	CacheRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spotify_cache_records",
			Help: "Current number of records in the response cache",
		},
	)
)
