// Package client provides the Spotify HTTP transport and the conditional
// request caching proxy built on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for upstream requests.
var (
	spotifyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotify_requests_total",
		Help: "Total Spotify API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	spotifyRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spotify_request_duration_seconds",
		Help:    "Spotify API request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	spotifyErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotify_errors_total",
		Help: "Total Spotify API errors by class",
	}, []string{"class"})
)

// DefaultTimeout bounds a single upstream call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Sender issues a single upstream HTTP request.
type Sender interface {
	Send(ctx context.Context, req *RawRequest) (*Response, error)
}

// RawRequest is a fully resolved upstream request.
type RawRequest struct {
	Method string
	URL    string
	Header http.Header

	// Body is JSON encoded when non-nil
	Body any

	// Query is merged into the query string of URL
	Query url.Values
}

// Response is a successful (2xx/3xx) upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// TransportConfig holds the transport configuration.
type TransportConfig struct {
	// Timeout bounds each request, including reading the body
	Timeout time.Duration

	// HTTPClient overrides the default client (Timeout is ignored when set)
	HTTPClient *http.Client

	// Logger defaults to the global logger with component=spotify-transport
	Logger *zerolog.Logger
}

// Transport sends requests to Spotify. It keeps no state between calls
// and never retries.
type Transport struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewTransport creates a new transport.
func NewTransport(cfg TransportConfig) (*Transport, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		if cfg.Timeout <= 0 {
			return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
		}
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	logger := log.With().Str("component", "spotify-transport").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Transport{
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Send performs one HTTP request. Any status in 200-399 is returned as a
// Response; everything else is an *UpstreamError.
func (t *Transport) Send(ctx context.Context, req *RawRequest) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	u, err := url.Parse(req.URL)
	if err != nil || !u.IsAbs() {
		return nil, &UpstreamError{
			Class:   ErrorClassClient,
			Message: fmt.Sprintf("invalid upstream url %q", req.URL),
			Err:     err,
		}
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for key, values := range req.Query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	endpoint := u.Path
	startTime := time.Now()
	defer func() {
		spotifyRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	t.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Msg("Executing Spotify request")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		spotifyErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		spotifyRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		t.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &UpstreamError{
			Class:   ErrorClassNetwork,
			Message: "request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		spotifyErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		spotifyRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	spotifyRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		spotifyErrorsTotal.WithLabelValues(string(class)).Inc()

		t.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Spotify request error")

		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    upstreamMessage(data, resp.Status),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// upstreamMessage extracts the error text from a Spotify error body.
// Spotify reports errors as {"error": {"status": 401, "message": "..."}};
// OAuth endpoints use {"error": "...", "error_description": "..."}.
func upstreamMessage(body []byte, status string) string {
	var payload struct {
		Error json.RawMessage `json:"error"`
		Desc  string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Error) > 0 {
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
		if payload.Desc != "" {
			return payload.Desc
		}
		var s string
		if err := json.Unmarshal(payload.Error, &s); err == nil && s != "" {
			return s
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return status
}
