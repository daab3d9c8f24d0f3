// Package cache provides the in-memory response cache behind the Spotify
// caching proxy.
//
// A Key fingerprints a request from its scope, method, endpoint and query
// parameters. A Record keeps the last decoded body together with the ETag
// validator that upstream sent for it. The Store maps keys to records for the
// lifetime of the process.
//
// # Basic Usage
//
//	store := cache.NewStore()
//
//	key := cache.Key{
//		Endpoint: "me/top/tracks",
//		Query:    url.Values{"limit": []string{"20"}},
//	}
//
//	if rec, ok := store.Get(key); ok && rec.HasValidator() {
//		req.Header.Set("If-None-Match", rec.Validator)
//	}
//
//	// after a 200 response
//	store.Set(key, cache.Record{
//		Validator: resp.Header.Get("ETag"),
//		Body:      decoded,
//		FetchedAt: time.Now(),
//	})
//
// # Lifecycle
//
// Records are created on the first successful fetch for a key and overwritten
// on every later non-304 response. Nothing is evicted: the store is bounded
// only by the set of distinct keys seen by the process.
//
// # Metrics
//
//   - spotify_cache_hits_total - 304 responses served from a record
//   - spotify_cache_misses_total - lookups without a record
//   - spotify_cache_conditional_requests_total - requests sent with If-None-Match
//   - spotify_cache_records - records currently stored
package cache
