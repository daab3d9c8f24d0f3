// Package api exposes the listening analytics over HTTP.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Sternrassler/trackrecord/pkg/analytics"
	"github.com/Sternrassler/trackrecord/pkg/cache"
	"github.com/Sternrassler/trackrecord/pkg/client"
	"github.com/Sternrassler/trackrecord/pkg/metrics"
)

var httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total inbound API requests by route and status code",
}, []string{"route", "code"})

// Options configures the API server.
type Options struct {
	// Sender performs upstream calls for every request's proxy
	Sender client.Sender

	// Store is shared by all requests; records are scoped per access token
	Store *cache.Store

	// BaseURL defaults to client.DefaultBaseURL
	BaseURL string

	Analytics analytics.Config
	Sessions  *scs.SessionManager
	Logger    zerolog.Logger
}

// Server routes API requests to the analytics operations.
type Server struct {
	Router   *chi.Mux
	sender   client.Sender
	store    *cache.Store
	baseURL  string
	config   analytics.Config
	sess     *scs.SessionManager
	logger   zerolog.Logger
	validate *validator.Validate

	proxyLogger zerolog.Logger
}

// New creates the server and its routes.
func New(opts Options) *Server {
	r := chi.NewRouter()
	s := &Server{
		Router:   r,
		sender:   opts.Sender,
		store:    opts.Store,
		baseURL:  opts.BaseURL,
		config:   opts.Analytics,
		sess:     opts.Sessions,
		logger:   opts.Logger.With().Str("component", "api").Logger(),
		validate: validator.New(),

		proxyLogger: opts.Logger.With().Str("component", "spotify-proxy").Logger(),
	}
	if s.config.Logger == nil {
		logger := opts.Logger.With().Str("component", "analytics").Logger()
		s.config.Logger = &logger
	}

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.MethodHandler("method"))
	r.Use(hlog.URLHandler("url"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("Request served")
	}))
	r.Use(countRequests)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(ar chi.Router) {
		if s.sess != nil {
			ar.Use(s.sess.LoadAndSave)
		}
		ar.Post("/api/token", s.handleToken)
		ar.Post("/api/top-tracks", s.handleOperation("top_tracks", func(r *http.Request, a *analytics.Analytics, n int) any {
			return a.TopTracks(r.Context(), n)
		}))
		ar.Post("/api/top-artists", s.handleOperation("top_artists", func(r *http.Request, a *analytics.Analytics, n int) any {
			return a.TopArtists(r.Context(), n)
		}))
		ar.Post("/api/recently-played", s.handleOperation("recently_played", func(r *http.Request, a *analytics.Analytics, n int) any {
			return a.RecentlyPlayed(r.Context(), n)
		}))
		ar.Post("/api/top-genres", s.handleOperation("top_genres", func(r *http.Request, a *analytics.Analytics, n int) any {
			return a.TopGenres(r.Context(), n)
		}))
		ar.Post("/api/quick-stats", s.handleOperation("quick_stats", func(r *http.Request, a *analytics.Analytics, _ int) any {
			return []analytics.QuickStats{a.QuickStats(r.Context())}
		}))
		ar.Post("/api/recommendations", s.handleOperation("recommendations", func(r *http.Request, a *analytics.Analytics, n int) any {
			return a.Recommendations(r.Context(), n)
		}))
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// countRequests records http_requests_total by route pattern.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}
