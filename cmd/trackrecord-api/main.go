// Command trackrecord-api serves Spotify listening analytics over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/trackrecord/internal/api"
	"github.com/Sternrassler/trackrecord/internal/config"
	"github.com/Sternrassler/trackrecord/internal/session"
	"github.com/Sternrassler/trackrecord/pkg/analytics"
	"github.com/Sternrassler/trackrecord/pkg/cache"
	"github.com/Sternrassler/trackrecord/pkg/client"
	"github.com/Sternrassler/trackrecord/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging(os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	handler, cleanup, err := buildHandler(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Addr()).
			Str("spotify_base_url", cfg.Spotify.BaseURL).
			Bool("redis_sessions", cfg.HasRedis()).
			Msg("Starting trackrecord API")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildHandler wires the shared cache, transport and sessions into the API.
func buildHandler(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	cleanup := func() {}

	var redisClient *redis.Client
	if cfg.HasRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, cleanup, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
		cleanup = func() { redisClient.Close() }
	}

	transportLogger := logger.With().Str("component", "spotify-transport").Logger()
	transport, err := client.NewTransport(client.TransportConfig{
		Timeout: cfg.Spotify.Timeout,
		Logger:  &transportLogger,
	})
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("create transport: %w", err)
	}

	server := api.New(api.Options{
		Sender:  transport,
		Store:   cache.NewStore(),
		BaseURL: cfg.Spotify.BaseURL,
		Analytics: analytics.Config{
			DefaultLimit:   cfg.Spotify.DefaultLimit,
			PageSize:       cfg.Spotify.PageSize,
			MaxConcurrency: cfg.Spotify.MaxConcurrency,
		},
		Sessions: session.New(session.Config{
			Lifetime:     cfg.Session.Lifetime,
			CookieSecure: cfg.Session.CookieSecure,
		}, redisClient),
		Logger: logger,
	})

	return server, cleanup, nil
}
