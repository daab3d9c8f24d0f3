// Package analytics turns Spotify listening data into flat records: top
// tracks and artists, recently played tracks, genre breakdowns, quick stats
// and recommendations.
//
// Every read goes through a client.Fetcher (normally the caching proxy), so
// repeated calls are answered with conditional requests. Operations never
// fail: upstream problems degrade to empty results and are logged.
package analytics

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/trackrecord/pkg/client"
	"github.com/Sternrassler/trackrecord/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "analytics_operation_duration_seconds",
	Help:    "Analytics operation duration in seconds by operation",
	Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
}, []string{"operation"})

// ErrEmptyInput is returned when an operation has nothing to work with,
// e.g. recommendations without any seed.
var ErrEmptyInput = errors.New("no input values")

// Spotify endpoints used by the analytics operations.
const (
	EndpointTopTracks       = "me/top/tracks"
	EndpointTopArtists      = "me/top/artists"
	EndpointRecentlyPlayed  = "me/player/recently-played"
	EndpointRecommendations = "recommendations"
)

const (
	// DefaultLimit is used when an operation is called with n <= 0.
	DefaultLimit = 20

	// maxSeedsPerCategory bounds each seed_* parameter of a recommendation.
	maxSeedsPerCategory = 2
)

// Config holds the analytics configuration.
type Config struct {
	// DefaultLimit replaces non-positive item counts
	DefaultLimit int

	// PageSize is the upstream window size; larger requests are paginated
	PageSize int

	// MaxConcurrency bounds parallel page fetches
	MaxConcurrency int

	// Logger defaults to the global logger with component=analytics
	Logger *zerolog.Logger
}

// Analytics implements the listening analytics operations.
type Analytics struct {
	fetcher client.Fetcher
	pages   *pagination.BatchFetcher
	config  Config
	logger  zerolog.Logger
}

// New creates the analytics façade over fetcher.
func New(fetcher client.Fetcher, cfg Config) *Analytics {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.PageSize <= 0 || cfg.PageSize > pagination.MaxPageSize {
		cfg.PageSize = pagination.MaxPageSize
	}

	logger := log.With().Str("component", "analytics").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	pageConfig := pagination.DefaultConfig()
	pageConfig.PageSize = cfg.PageSize
	pageConfig.MaxConcurrency = cfg.MaxConcurrency
	pageConfig.Logger = &logger

	return &Analytics{
		fetcher: fetcher,
		pages:   pagination.NewBatchFetcher(&pageSource{fetcher: fetcher}, pageConfig),
		config:  cfg,
		logger:  logger,
	}
}

// TopTracks returns the user's n top tracks.
func (a *Analytics) TopTracks(ctx context.Context, n int) []Record {
	defer observe("top_tracks", time.Now())
	records, _ := a.topItems(ctx, EndpointTopTracks, n)
	return records
}

// TopArtists returns the user's n top artists.
func (a *Analytics) TopArtists(ctx context.Context, n int) []Record {
	defer observe("top_artists", time.Now())
	records, _ := a.topItems(ctx, EndpointTopArtists, n)
	return records
}

// RecentlyPlayed returns up to n recently played tracks. Spotify keeps at
// most one page of history, so n is capped at the page size.
func (a *Analytics) RecentlyPlayed(ctx context.Context, n int) []Record {
	defer observe("recently_played", time.Now())
	records, _ := a.recentlyPlayed(ctx, n)
	return records
}

// TopGenres returns one {"genre": g} record per (artist, genre) pair of the
// n top artists. Duplicates are kept.
func (a *Analytics) TopGenres(ctx context.Context, n int) []Record {
	defer observe("top_genres", time.Now())
	records, _ := a.topGenres(ctx, n)
	return records
}

// Recommendations returns n tracks seeded from the user's top tracks,
// artists and genres.
func (a *Analytics) Recommendations(ctx context.Context, n int) []Record {
	defer observe("recommendations", time.Now())

	var tracks, artists, genres []Record
	var g errgroup.Group
	g.Go(func() error {
		tracks, _ = a.topItems(ctx, EndpointTopTracks, 2)
		return nil
	})
	g.Go(func() error {
		artists, _ = a.topItems(ctx, EndpointTopArtists, 1)
		return nil
	})
	g.Go(func() error {
		genres, _ = a.topGenres(ctx, 5)
		return nil
	})
	_ = g.Wait()

	seeds := url.Values{}
	addSeeds(seeds, "seed_tracks", stringsOf(tracks, "id"))
	addSeeds(seeds, "seed_artists", stringsOf(artists, "id"))
	addSeeds(seeds, "seed_genres", stringsOf(genres, "genre"))
	if len(seeds) == 0 {
		a.logger.Info().Err(ErrEmptyInput).Msg("Skipping recommendations without seeds")
		return []Record{}
	}

	seeds.Set("limit", strconv.Itoa(a.limit(n)))
	result := a.fetcher.Fetch(ctx, client.Request{Endpoint: EndpointRecommendations, Query: seeds})
	if !result.OK() {
		a.logger.Warn().Err(result.Err).Str("endpoint", EndpointRecommendations).Msg("Recommendations unavailable")
	}
	return Flatten(result.Doc.Items("tracks"))
}

func addSeeds(q url.Values, key string, values []string) {
	if seeds := seedList(values, maxSeedsPerCategory); len(seeds) > 0 {
		q.Set(key, strings.Join(seeds, ","))
	}
}

// topItems reads a top-items list, paginating when n exceeds the page size.
// The error reports whether the data is incomplete.
func (a *Analytics) topItems(ctx context.Context, endpoint string, n int) ([]Record, error) {
	n = a.limit(n)
	if n <= a.config.PageSize {
		return a.list(ctx, endpoint, url.Values{"limit": []string{strconv.Itoa(n)}})
	}

	items, err := a.pages.FetchAll(ctx, endpoint, n)
	if err != nil {
		a.logger.Warn().Err(err).Str("endpoint", endpoint).Int("n", n).Msg("Paged read incomplete")
	}
	return Flatten(items), err
}

func (a *Analytics) recentlyPlayed(ctx context.Context, n int) ([]Record, error) {
	n = min(a.limit(n), a.config.PageSize)
	return a.list(ctx, EndpointRecentlyPlayed, url.Values{"limit": []string{strconv.Itoa(n)}})
}

func (a *Analytics) topGenres(ctx context.Context, n int) ([]Record, error) {
	artists, err := a.topItems(ctx, EndpointTopArtists, n)

	genres := make([]Record, 0, len(artists))
	for _, artist := range artists {
		list, _ := artist["genres"].([]any)
		for _, genre := range list {
			if s, ok := genre.(string); ok {
				genres = append(genres, Record{"genre": s})
			} else {
				genres = append(genres, Record{"genre": nil})
			}
		}
	}
	return genres, err
}

func (a *Analytics) list(ctx context.Context, endpoint string, query url.Values) ([]Record, error) {
	result := a.fetcher.Fetch(ctx, client.Request{Endpoint: endpoint, Query: query})
	if !result.OK() {
		a.logger.Warn().Err(result.Err).Str("endpoint", endpoint).Msg("Read failed - returning empty result")
	}
	return Flatten(result.Doc.Items("items")), result.Err
}

func (a *Analytics) limit(n int) int {
	if n <= 0 {
		return a.config.DefaultLimit
	}
	return n
}

func observe(operation string, start time.Time) {
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// pageSource adapts a Fetcher to offset paging.
type pageSource struct {
	fetcher client.Fetcher
}

func (p *pageSource) FetchPage(ctx context.Context, endpoint string, offset, limit int) ([]any, int, error) {
	query := url.Values{"limit": []string{strconv.Itoa(limit)}}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}

	result := p.fetcher.Fetch(ctx, client.Request{Endpoint: endpoint, Query: query})
	if !result.OK() {
		return nil, 0, result.Err
	}

	items := result.Doc.Items("items")
	total := offset + len(items)
	if t, ok := result.Doc["total"].(float64); ok && !math.IsNaN(t) {
		total = int(t)
	}
	return items, total, nil
}
