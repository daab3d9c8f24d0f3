package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/trackrecord/internal/config"
	"github.com/Sternrassler/trackrecord/internal/testutil"
)

func testConfig(t *testing.T, environ map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromEnvironment(environ)
	if err != nil {
		t.Fatalf("LoadFromEnvironment() failed: %v", err)
	}
	return cfg
}

func TestBuildHandler_InMemorySessions(t *testing.T) {
	mock := testutil.NewMockSpotify()
	defer mock.Close()
	mock.SetResponse("/v1/me/top/tracks", testutil.NewJSONResponse(`"v1"`, `{"items": [{"name": "T"}]}`))

	cfg := testConfig(t, map[string]string{"SPOTIFY_BASE_URL": mock.BaseURL()})

	handler, cleanup, err := buildHandler(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("buildHandler() failed: %v", err)
	}
	defer cleanup()

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/api/top-tracks", "application/json", strings.NewReader(`{"accessToken": "tok"}`))
	if err != nil {
		t.Fatalf("POST /api/top-tracks failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `"name":"T"`) {
		t.Errorf("body = %s, want top track T", body)
	}
	if mock.LastRawQuery() != "limit=20" {
		t.Errorf("query = %q, want the configured default limit", mock.LastRawQuery())
	}
}

func TestBuildHandler_RedisSessions(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() failed: %v", err)
	}
	defer mr.Close()

	cfg := testConfig(t, map[string]string{"REDIS_ADDR": mr.Addr()})

	handler, cleanup, err := buildHandler(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("buildHandler() failed: %v", err)
	}
	defer cleanup()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(`{"accessToken": "tok"}`))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(mr.Keys()) != 1 {
		t.Errorf("redis keys = %v, want one session", mr.Keys())
	}
}

func TestBuildHandler_RedisUnavailable(t *testing.T) {
	// Reserve a port and release it so nothing listens there
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := testConfig(t, map[string]string{"REDIS_ADDR": addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, _, err := buildHandler(ctx, cfg, zerolog.Nop()); err == nil {
		t.Error("expected error when Redis is unreachable")
	}
}

func TestRun_GracefulShutdown(t *testing.T) {
	cfg := testConfig(t, map[string]string{"PORT": "0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, cfg, zerolog.Nop())
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}
