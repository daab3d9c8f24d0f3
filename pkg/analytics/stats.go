package analytics

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
)

// QuickStats summarizes a user's listening. Nil fields are absent: the
// read behind them failed or returned nothing.
type QuickStats struct {
	TopArtist *string `json:"top_artist"`
	TopTrack  *string `json:"top_track"`
	TopGenre  *string `json:"top_genre"`

	// MinutesListenedByDay holds seven values, Monday first, computed from
	// the recently played history in UTC.
	MinutesListenedByDay []float64 `json:"minutes_listened_by_day"`
}

// QuickStats reads the top artist, top track, genre sample and play history
// concurrently. A failed read leaves only its own field absent.
func (a *Analytics) QuickStats(ctx context.Context) QuickStats {
	defer observe("quick_stats", time.Now())

	var stats QuickStats
	var g errgroup.Group
	g.Go(func() error {
		artists, _ := a.topItems(ctx, EndpointTopArtists, 1)
		stats.TopArtist = firstString(artists, "name")
		return nil
	})
	g.Go(func() error {
		tracks, _ := a.topItems(ctx, EndpointTopTracks, 1)
		stats.TopTrack = firstString(tracks, "name")
		return nil
	})
	g.Go(func() error {
		genres, _ := a.topGenres(ctx, 10)
		if genre, ok := Mode(stringsOf(genres, "genre")); ok {
			stats.TopGenre = &genre
		}
		return nil
	})
	g.Go(func() error {
		plays, err := a.recentlyPlayed(ctx, a.config.PageSize)
		if err == nil {
			stats.MinutesListenedByDay = MinutesByDay(plays)
		}
		return nil
	})
	_ = g.Wait()

	return stats
}

// MinutesByDay sums track.duration_ms of flattened play history records per
// UTC weekday, Monday first, in minutes rounded to two decimals. Records
// without a parsable played_at or duration are ignored.
func MinutesByDay(plays []Record) []float64 {
	var ms [7]float64
	for _, play := range plays {
		playedAt, ok := play["played_at"].(string)
		if !ok {
			continue
		}
		ts, err := time.Parse(time.RFC3339, playedAt)
		if err != nil {
			continue
		}
		duration, ok := play["track.duration_ms"].(float64)
		if !ok || math.IsNaN(duration) || math.IsInf(duration, 0) {
			continue
		}
		day := (int(ts.UTC().Weekday()) + 6) % 7
		ms[day] += duration
	}

	minutes := make([]float64, 7)
	for i, total := range ms {
		minutes[i] = math.Round(total/60000*100) / 100
	}
	return minutes
}

func firstString(records []Record, key string) *string {
	if len(records) == 0 {
		return nil
	}
	if s, ok := records[0][key].(string); ok {
		return &s
	}
	return nil
}
