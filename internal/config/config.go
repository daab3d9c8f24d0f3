// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"io"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/Sternrassler/trackrecord/pkg/logging"
)

// Config holds all application configuration
type Config struct {
	Port      string `env:"PORT" envDefault:"8080" validate:"required,numeric"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	Spotify SpotifyConfig `envPrefix:"SPOTIFY_"`
	Redis   RedisConfig   `envPrefix:"REDIS_"`
	Session SessionConfig `envPrefix:"SESSION_"`
}

// SpotifyConfig holds the upstream API configuration
type SpotifyConfig struct {
	BaseURL        string        `env:"BASE_URL" envDefault:"https://api.spotify.com/v1" validate:"required,url"`
	Timeout        time.Duration `env:"TIMEOUT" envDefault:"10s"`
	DefaultLimit   int           `env:"DEFAULT_LIMIT" envDefault:"20" validate:"min=1,max=100"`
	PageSize       int           `env:"PAGE_SIZE" envDefault:"50" validate:"min=1,max=50"`
	MaxConcurrency int           `env:"MAX_CONCURRENCY" envDefault:"4" validate:"min=1,max=32"`
}

// RedisConfig holds the session store configuration. An empty Addr keeps
// sessions in memory.
type RedisConfig struct {
	Addr string `env:"ADDR" validate:"omitempty,hostname_port"`
	DB   int    `env:"DB" envDefault:"0" validate:"min=0,max=15"`
}

// SessionConfig holds the session cookie configuration
type SessionConfig struct {
	Lifetime     time.Duration `env:"LIFETIME" envDefault:"1h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnvironment reads configuration from the given variables instead
// of the process environment
func LoadFromEnvironment(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if c.Spotify.Timeout <= 0 {
		return fmt.Errorf("SPOTIFY_TIMEOUT must be > 0, got %s", c.Spotify.Timeout)
	}
	if c.Session.Lifetime <= 0 {
		return fmt.Errorf("SESSION_LIFETIME must be > 0, got %s", c.Session.Lifetime)
	}
	return nil
}

// HasRedis returns true if sessions should be stored in Redis
func (c *Config) HasRedis() bool {
	return c.Redis.Addr != ""
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Logging returns the logger configuration writing to output
func (c *Config) Logging(output io.Writer) logging.Config {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.Config{
		Level:  level,
		Pretty: c.LogPretty,
		Output: output,
	}
}
