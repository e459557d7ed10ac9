package server

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/alakazam-audio/alakazam/internal/auth"
	"github.com/alakazam-audio/alakazam/pkg/errors"
)

// apiKeyHeader carries the plaintext API key on every authenticated request.
const apiKeyHeader = "X-API-Key"

// Auth verifies the API key on every request and rate-limits per key. A nil
// keys store disables authentication but keeps per-IP rate limiting. Health
// probes bypass both so orchestrators never need credentials.
func Auth(keys *auth.KeyStore, limiter *auth.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isHealthPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if keys == nil {
				if !limiter.Allow("ip:"+clientHost(r), 0) {
					rejectJSON(w, errors.ErrRateLimited)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			plaintext := r.Header.Get(apiKeyHeader)
			if plaintext == "" {
				rejectJSON(w, errors.ErrUnauthorized)
				return
			}
			key, err := keys.Verify(r.Context(), plaintext)
			if err != nil {
				rejectJSON(w, err)
				return
			}
			if !limiter.Allow(key.Name, key.RateLimit) {
				rejectJSON(w, errors.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isHealthPath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

// clientHost strips the ephemeral port from RemoteAddr so anonymous rate
// limiting tracks the client address rather than the TCP connection.
func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func rejectJSON(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errors.HTTPStatusCode(err))
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
