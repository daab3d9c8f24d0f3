// Package session keeps the Spotify access token of each browser session.
//
// Tokens live in an scs session, either in memory or in Redis, so concurrent
// users never share a credential.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/redis/go-redis/v9"
)

const tokenKey = "spotify_access_token"

// Config holds the session cookie configuration.
type Config struct {
	Lifetime     time.Duration
	CookieSecure bool
}

// New creates a session manager. With a non-nil Redis client sessions are
// stored in Redis; otherwise in memory.
func New(cfg Config, client *redis.Client) *scs.SessionManager {
	sess := scs.New()
	if cfg.Lifetime > 0 {
		sess.Lifetime = cfg.Lifetime
	}
	sess.Cookie.Name = "trackrecord_session"
	sess.Cookie.HttpOnly = true
	sess.Cookie.SameSite = http.SameSiteLaxMode
	sess.Cookie.Secure = cfg.CookieSecure
	if client != nil {
		sess.Store = NewRedisStore(client)
	}
	return sess
}

// PutToken stores the access token in the current session and renews the
// session token.
func PutToken(ctx context.Context, sess *scs.SessionManager, accessToken string) error {
	if err := sess.RenewToken(ctx); err != nil {
		return err
	}
	sess.Put(ctx, tokenKey, accessToken)
	return nil
}

// Token returns the access token of the current session, or "".
func Token(ctx context.Context, sess *scs.SessionManager) string {
	return sess.GetString(ctx, tokenKey)
}
