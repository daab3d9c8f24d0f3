package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/trackrecord/internal/session"
	"github.com/Sternrassler/trackrecord/internal/testutil"
	"github.com/Sternrassler/trackrecord/pkg/cache"
	"github.com/Sternrassler/trackrecord/pkg/client"
)

func newTestServer(t *testing.T) (*httptest.Server, *testutil.MockSpotify) {
	t.Helper()

	mock := testutil.NewMockSpotify()
	t.Cleanup(mock.Close)

	logger := zerolog.Nop()
	transport, err := client.NewTransport(client.TransportConfig{Timeout: 5 * time.Second, Logger: &logger})
	require.NoError(t, err)

	s := New(Options{
		Sender:   transport,
		Store:    cache.NewStore(),
		BaseURL:  mock.BaseURL(),
		Sessions: session.New(session.Config{Lifetime: time.Hour}, nil),
		Logger:   logger,
	})

	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return srv, mock
}

func post(t *testing.T, c *http.Client, url, body string) (int, map[string]any) {
	t.Helper()
	if c == nil {
		c = http.DefaultClient
	}

	resp, err := c.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out), "body: %s", data)
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"status": "ok"}`, string(body))
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "spotify_cache_hits_total")
	assert.Contains(t, string(body), `http_requests_total{code="200",route="/health"}`)
}

func TestTopTracks(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.SetHandler("/v1/me/top/tracks", testutil.NewConditionalHandler(`"t1"`,
		`{"items": [{"name": "T", "album": {"name": "A"}}], "total": 1}`))

	status, body := post(t, nil, srv.URL+"/api/top-tracks", `{"accessToken": "user-token", "limit": 5}`)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{
		"top_tracks": []any{map[string]any{"name": "T", "album.name": "A"}},
	}, body)
	assert.Equal(t, "Bearer user-token", mock.LastRequestHeader().Get("Authorization"))
	assert.Equal(t, "limit=5", mock.LastRawQuery())

	// Second call revalidates the cached record
	status, body = post(t, nil, srv.URL+"/api/top-tracks", `{"accessToken": "user-token", "limit": 5}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["top_tracks"], 1)
	assert.Equal(t, 1, mock.ConditionalCount())
}

func TestOperations_ResponseShapes(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.SetResponse("/v1/me/top/tracks", testutil.NewJSONResponse(`"t"`,
		`{"items": [{"id": "t1", "name": "T"}], "total": 1}`))
	mock.SetResponse("/v1/me/top/artists", testutil.NewJSONResponse(`"a"`,
		`{"items": [{"id": "a1", "name": "A", "genres": ["x", "y"]}], "total": 1}`))
	mock.SetResponse("/v1/me/player/recently-played", testutil.NewJSONResponse("",
		`{"items": [{"played_at": "2024-01-01T08:00:00Z", "track": {"name": "T", "duration_ms": 60000}}]}`))
	mock.SetResponse("/v1/recommendations", testutil.NewJSONResponse("",
		`{"tracks": [{"id": "r1", "name": "R"}]}`))

	tests := []struct {
		path string
		key  string
		want any
	}{
		{"/api/top-artists", "top_artists", []any{map[string]any{"id": "a1", "name": "A", "genres": []any{"x", "y"}}}},
		{"/api/top-genres", "top_genres", []any{map[string]any{"genre": "x"}, map[string]any{"genre": "y"}}},
		{"/api/recently-played", "recently_played", []any{map[string]any{
			"played_at": "2024-01-01T08:00:00Z", "track.name": "T", "track.duration_ms": 60000.0,
		}}},
		{"/api/recommendations", "recommendations", []any{map[string]any{"id": "r1", "name": "R"}}},
		{"/api/quick-stats", "quick_stats", []any{map[string]any{
			"top_artist":              "A",
			"top_track":               "T",
			"top_genre":               "x",
			"minutes_listened_by_day": []any{1.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			status, body := post(t, nil, srv.URL+tt.path, `{"accessToken": "user-token"}`)

			assert.Equal(t, http.StatusOK, status)
			assert.Equal(t, map[string]any{tt.key: tt.want}, body)
		})
	}
}

func TestOperations_WithoutCredential(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.SetResponse("/v1/me/top/tracks", testutil.NewJSONResponse(`"t"`, `{"items": [{"name": "T"}]}`))

	status, body := post(t, nil, srv.URL+"/api/top-tracks", ``)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"top_tracks": []any{}}, body)
	assert.Equal(t, 0, mock.RequestCount())

	status, body = post(t, nil, srv.URL+"/api/quick-stats", `{}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"quick_stats": []any{map[string]any{
		"top_artist": nil, "top_track": nil, "top_genre": nil, "minutes_listened_by_day": nil,
	}}}, body)
}

func TestOperations_UpstreamFailureIsNotServerError(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.SetResponse("/v1/me/top/tracks", testutil.NewErrorResponse(http.StatusInternalServerError, "boom"))

	status, body := post(t, nil, srv.URL+"/api/top-tracks", `{"accessToken": "user-token"}`)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"top_tracks": []any{}}, body)
}

func TestOperations_BadRequest(t *testing.T) {
	srv, mock := newTestServer(t)

	for _, body := range []string{`{"accessToken": `, `{"limit": 500}`, `{"limit": -1}`, `{"limit": "ten"}`} {
		status, out := post(t, nil, srv.URL+"/api/top-tracks", body)
		assert.Equal(t, http.StatusBadRequest, status, body)
		assert.NotEmpty(t, out["error"], body)
	}
	assert.Equal(t, 0, mock.RequestCount())
}

func TestToken_StoresCredentialInSession(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.SetResponse("/v1/me/top/artists", testutil.NewJSONResponse(`"a"`, `{"items": [{"name": "A"}]}`))

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	c := &http.Client{Jar: jar}

	status, body := post(t, c, srv.URL+"/api/token", `{"accessToken": "session-token"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "stored", body["status"])

	status, body = post(t, c, srv.URL+"/api/top-artists", `{}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["top_artists"], 1)
	assert.Equal(t, "Bearer session-token", mock.LastRequestHeader().Get("Authorization"))

	// A token in the body wins over the session's
	post(t, c, srv.URL+"/api/top-artists", `{"accessToken": "body-token"}`)
	assert.Equal(t, "Bearer body-token", mock.LastRequestHeader().Get("Authorization"))
}

func TestToken_RequiresAccessToken(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := post(t, nil, srv.URL+"/api/token", `{}`)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])
}
