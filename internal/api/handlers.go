package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"
	"golang.org/x/oauth2"

	"github.com/Sternrassler/trackrecord/internal/session"
	"github.com/Sternrassler/trackrecord/pkg/analytics"
	"github.com/Sternrassler/trackrecord/pkg/client"
)

// maxBodyBytes bounds inbound request bodies.
const maxBodyBytes = 1 << 20

// analyticsRequest is the body accepted by every analytics endpoint. Both
// fields are optional.
type analyticsRequest struct {
	AccessToken string `json:"accessToken"`
	Limit       int    `json:"limit" validate:"min=0,max=100"`
}

type tokenRequest struct {
	AccessToken string `json:"accessToken" validate:"required"`
}

type operation func(r *http.Request, a *analytics.Analytics, n int) any

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleToken stores the access token in the caller's session.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.sess == nil {
		writeError(w, http.StatusNotImplemented, errors.New("sessions are disabled"))
		return
	}
	if err := session.PutToken(r.Context(), s.sess, req.AccessToken); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to store access token")
		writeError(w, http.StatusInternalServerError, errors.New("failed to store token"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

// handleOperation runs op with a proxy bound to the caller's credential and
// wraps the result under key. Upstream failures yield empty data, not errors.
func (s *Server) handleOperation(key string, op operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyticsRequest
		if err := s.decode(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		proxy, err := client.NewProxy(s.sender, client.ProxyConfig{
			BaseURL: s.baseURL,
			Store:   s.store,
			Tokens:  s.tokenSource(r, req.AccessToken),
			Logger:  &s.proxyLogger,
		})
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("Failed to create proxy")
			writeError(w, http.StatusInternalServerError, errors.New("server misconfigured"))
			return
		}

		result := op(r, analytics.New(proxy, s.config), req.Limit)
		writeJSON(w, http.StatusOK, map[string]any{key: result})
	}
}

// tokenSource prefers the token in the body over the session's. A nil
// source makes every fetch unauthenticated.
func (s *Server) tokenSource(r *http.Request, bodyToken string) oauth2.TokenSource {
	token := strings.TrimSpace(bodyToken)
	if token == "" && s.sess != nil {
		token = session.Token(r.Context(), s.sess)
	}
	if token == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// decode reads an optional JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("malformed JSON body")
	}
	if err := s.validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
