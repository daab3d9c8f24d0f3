package config

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/trackrecord/pkg/logging"
)

func TestLoadFromEnvironment_Defaults(t *testing.T) {
	cfg, err := LoadFromEnvironment(map[string]string{})
	if err != nil {
		t.Fatalf("LoadFromEnvironment() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Spotify.BaseURL != "https://api.spotify.com/v1" {
		t.Errorf("BaseURL = %q", cfg.Spotify.BaseURL)
	}
	if cfg.Spotify.Timeout != 10*time.Second {
		t.Errorf("Timeout = %s, want 10s", cfg.Spotify.Timeout)
	}
	if cfg.Spotify.DefaultLimit != 20 {
		t.Errorf("DefaultLimit = %d, want 20", cfg.Spotify.DefaultLimit)
	}
	if cfg.Spotify.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", cfg.Spotify.PageSize)
	}
	if cfg.Spotify.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", cfg.Spotify.MaxConcurrency)
	}
	if cfg.HasRedis() {
		t.Error("HasRedis() should be false without REDIS_ADDR")
	}
	if cfg.Session.Lifetime != time.Hour {
		t.Errorf("Lifetime = %s, want 1h", cfg.Session.Lifetime)
	}
	if cfg.Session.CookieSecure {
		t.Error("CookieSecure should default to false")
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr() = %q, want :8080", cfg.Addr())
	}
}

func TestLoadFromEnvironment_Overrides(t *testing.T) {
	cfg, err := LoadFromEnvironment(map[string]string{
		"PORT":                    "9090",
		"LOG_LEVEL":               "debug",
		"LOG_PRETTY":              "true",
		"SPOTIFY_BASE_URL":        "http://localhost:8081/v1",
		"SPOTIFY_TIMEOUT":         "2s",
		"SPOTIFY_DEFAULT_LIMIT":   "10",
		"SPOTIFY_PAGE_SIZE":       "25",
		"SPOTIFY_MAX_CONCURRENCY": "8",
		"REDIS_ADDR":              "localhost:6379",
		"REDIS_DB":                "2",
		"SESSION_LIFETIME":        "30m",
		"SESSION_COOKIE_SECURE":   "true",
	})
	if err != nil {
		t.Fatalf("LoadFromEnvironment() failed: %v", err)
	}

	if cfg.Port != "9090" || cfg.LogLevel != "debug" || !cfg.LogPretty {
		t.Errorf("unexpected server config: %+v", cfg)
	}
	if cfg.Spotify.BaseURL != "http://localhost:8081/v1" || cfg.Spotify.Timeout != 2*time.Second {
		t.Errorf("unexpected spotify config: %+v", cfg.Spotify)
	}
	if cfg.Spotify.DefaultLimit != 10 || cfg.Spotify.PageSize != 25 || cfg.Spotify.MaxConcurrency != 8 {
		t.Errorf("unexpected spotify limits: %+v", cfg.Spotify)
	}
	if !cfg.HasRedis() || cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis config: %+v", cfg.Redis)
	}
	if cfg.Session.Lifetime != 30*time.Minute || !cfg.Session.CookieSecure {
		t.Errorf("unexpected session config: %+v", cfg.Session)
	}
}

func TestLoadFromEnvironment_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		errText string
	}{
		{"non-numeric port", map[string]string{"PORT": "http"}, "Port"},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"bad base url", map[string]string{"SPOTIFY_BASE_URL": "not a url"}, "BaseURL"},
		{"zero timeout", map[string]string{"SPOTIFY_TIMEOUT": "0s"}, "SPOTIFY_TIMEOUT"},
		{"unparsable timeout", map[string]string{"SPOTIFY_TIMEOUT": "soon"}, "parse environment"},
		{"page size too large", map[string]string{"SPOTIFY_PAGE_SIZE": "100"}, "PageSize"},
		{"zero concurrency", map[string]string{"SPOTIFY_MAX_CONCURRENCY": "0"}, "MaxConcurrency"},
		{"redis addr without port", map[string]string{"REDIS_ADDR": "localhost"}, "Addr"},
		{"negative session lifetime", map[string]string{"SESSION_LIFETIME": "-1h"}, "SESSION_LIFETIME"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromEnvironment(tt.environ)
			if err == nil {
				t.Fatal("Expected error but got nil")
			}
			if !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("error %q should mention %q", err.Error(), tt.errText)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("SPOTIFY_TIMEOUT", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("Port = %q, want 7070", cfg.Port)
	}
	if cfg.Spotify.Timeout != 3*time.Second {
		t.Errorf("Timeout = %s, want 3s", cfg.Spotify.Timeout)
	}
}

func TestConfig_Logging(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := &Config{LogLevel: "warning", LogPretty: true}

	lc := cfg.Logging(buf)

	if lc.Level != logging.LevelWarn {
		t.Errorf("Level = %q, want warn", lc.Level)
	}
	if !lc.Pretty {
		t.Error("Pretty should be true")
	}
	if lc.Output != buf {
		t.Error("Output should be the given writer")
	}
}
