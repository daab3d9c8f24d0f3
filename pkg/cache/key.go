package cache

import (
	"net/http"
	"net/url"
	"strings"
)

// Key identifies a cached upstream response.
type Key struct {
	// Scope separates credentials sharing one Store (empty for unscoped keys).
	Scope string

	// Method is the HTTP method; empty means GET.
	Method string

	// Endpoint is the API path relative to the base URL (e.g. "me/top/tracks")
	Endpoint string

	// Query holds the request query parameters
	Query url.Values
}

// String generates a deterministic cache key string.
// Format: spotify:scope:METHOD:endpoint?k1=v1&k2=v2
//
// The scope segment is omitted when empty and the method segment is omitted
// for GET. Query keys are sorted and values escaped, so parameter insertion
// order never changes the key and separators inside values cannot collide.
//
// Example:
//
//	spotify:9f86d081884c7d65:me/top/tracks?limit=20&time_range=short_term
func (k Key) String() string {
	parts := []string{"spotify"}

	if k.Scope != "" {
		parts = append(parts, k.Scope)
	}

	method := strings.ToUpper(k.Method)
	if method != "" && method != http.MethodGet {
		parts = append(parts, method)
	}

	endpoint := strings.Trim(k.Endpoint, "/")
	if len(k.Query) > 0 {
		endpoint += "?" + k.Query.Encode()
	}
	parts = append(parts, endpoint)

	return strings.Join(parts, ":")
}
