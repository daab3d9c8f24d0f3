package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/trackrecord/pkg/cache"
	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

var proxyFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spotify_proxy_failures_total",
	Help: "Total proxy fetches answered with an empty result, by reason",
}, []string{"reason"})

// DefaultBaseURL is the Spotify Web API root.
const DefaultBaseURL = "https://api.spotify.com/v1"

// Fetcher returns decoded JSON for a logical API request.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) Result
}

// Request is a logical request relative to the API base URL.
type Request struct {
	// Endpoint is the path below the base URL (e.g. "me/top/tracks")
	Endpoint string

	// Method defaults to GET
	Method string

	// Body is sent as JSON when non-nil
	Body any

	Query url.Values
}

// Document is a decoded JSON object.
type Document map[string]any

// Items returns the array stored under key, or nil.
func (d Document) Items(key string) []any {
	items, _ := d[key].([]any)
	return items
}

// Source reports where a Result's document came from.
type Source string

const (
	SourceNetwork Source = "network"
	SourceCache   Source = "cache"
	SourceNone    Source = "none"
)

// Result is the outcome of a Fetch. Doc is never nil: failures carry an
// empty document and the reason in Err.
type Result struct {
	Doc    Document
	Source Source
	Err    error
}

// OK reports whether the fetch produced data from upstream or cache.
func (r Result) OK() bool {
	return r.Err == nil
}

// ProxyConfig holds the proxy configuration.
type ProxyConfig struct {
	// BaseURL defaults to DefaultBaseURL
	BaseURL string

	// Store holds the cached records and may be shared between proxies
	Store *cache.Store

	// Tokens supplies the per-session access token. A nil source makes every
	// fetch fail with ErrUnauthenticated.
	Tokens oauth2.TokenSource

	// Logger defaults to the global logger with component=spotify-proxy
	Logger *zerolog.Logger
}

// Proxy wraps a Sender with ETag validation caching.
type Proxy struct {
	sender  Sender
	store   *cache.Store
	tokens  oauth2.TokenSource
	baseURL string
	logger  zerolog.Logger

	decode func([]byte) (Document, error)
	now    func() time.Time
}

// NewProxy creates a caching proxy in front of sender.
func NewProxy(sender Sender, cfg ProxyConfig) (*Proxy, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("cache store is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	logger := log.With().Str("component", "spotify-proxy").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Proxy{
		sender:  sender,
		store:   cfg.Store,
		tokens:  cfg.Tokens,
		baseURL: baseURL,
		logger:  logger,
		decode:  decodeDocument,
		now:     time.Now,
	}, nil
}

// Fetch resolves req through the cache and upstream.
//
// A stored record with a validator turns the request into a conditional one;
// a 304 answer returns the stored body untouched. Any other success replaces
// the record. Failures never panic or propagate: they return an empty
// document with the cause in Result.Err.
func (p *Proxy) Fetch(ctx context.Context, req Request) Result {
	endpoint := strings.Trim(req.Endpoint, "/")
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	tok, err := p.token()
	if err != nil {
		p.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Refusing request without access token")
		return p.fail("unauthenticated", err)
	}

	key := cache.Key{
		Scope:    scopeFor(tok.AccessToken),
		Method:   method,
		Endpoint: endpoint,
		Query:    req.Query,
	}
	rec, cached := p.store.Get(key)

	header := http.Header{}
	header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	if cached && rec.HasValidator() {
		header.Set("If-None-Match", rec.Validator)
		cache.ConditionalRequests.Inc()
		p.logger.Debug().
			Str("endpoint", endpoint).
			Str("etag", rec.Validator).
			Msg("Making conditional request")
	}

	resp, err := p.sender.Send(ctx, &RawRequest{
		Method: method,
		URL:    p.baseURL + "/" + endpoint,
		Header: header,
		Body:   req.Body,
		Query:  req.Query,
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Upstream request failed")
		return p.fail("upstream", err)
	}

	if resp.StatusCode == http.StatusNotModified {
		if !cached {
			p.logger.Warn().Str("endpoint", endpoint).Msg("304 Not Modified without cached record")
			return p.fail("not_modified_without_record", ErrNotModifiedWithoutRecord)
		}
		cache.CacheHits.Inc()
		p.logger.Debug().
			Str("endpoint", endpoint).
			Dur("age", rec.Age()).
			Msg("304 Not Modified - using cache")

		doc := Document(rec.Body)
		if doc == nil {
			doc = Document{}
		}
		return Result{Doc: doc, Source: SourceCache}
	}

	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return Result{Doc: Document{}, Source: SourceNetwork}
	}

	doc, err := p.decode(resp.Body)
	if err != nil {
		decodeErr := &DecodeError{Endpoint: endpoint, Err: err}
		p.logger.Warn().Err(decodeErr).Msg("Discarding undecodable response")
		return p.fail("decode", decodeErr)
	}

	p.store.Set(key, cache.Record{
		Validator: resp.Header.Get("ETag"),
		Body:      doc,
		FetchedAt: p.now(),
	})
	p.logger.Debug().
		Str("endpoint", endpoint).
		Bool("has_etag", resp.Header.Get("ETag") != "").
		Msg("Cached response")

	return Result{Doc: doc, Source: SourceNetwork}
}

// token returns the current access token or ErrUnauthenticated.
func (p *Proxy) token() (*oauth2.Token, error) {
	if p.tokens == nil {
		return nil, ErrUnauthenticated
	}
	tok, err := p.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, ErrUnauthenticated
	}
	return tok, nil
}

func (p *Proxy) fail(reason string, err error) Result {
	proxyFailuresTotal.WithLabelValues(reason).Inc()
	return Result{Doc: Document{}, Source: SourceNone, Err: err}
}

// scopeFor derives the cache namespace of an access token, so sessions
// sharing a Store never read each other's /me records.
func scopeFor(accessToken string) string {
	return strconv.FormatUint(xxhash.Sum64String(accessToken), 16)
}

func decodeDocument(body []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}
