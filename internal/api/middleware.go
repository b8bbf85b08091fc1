// Package api implements the loopback JSON API the UI layer and the webview
// shell talk to.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			given := strings.TrimPrefix(auth, "Bearer ")
			if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoopbackGuard rejects requests that did not come from the host's own
// clients. The Host header must be one of hosts (skipped when hosts is
// empty), which defeats DNS rebinding. A request carrying an Origin header
// must come from one of origins, which stops other web pages from posting
// to the loopback port.
func LoopbackGuard(hosts, origins []string) func(http.Handler) http.Handler {
	allowedHosts := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		allowedHosts[strings.ToLower(h)] = true
	}
	allowedOrigins := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowedOrigins[strings.ToLower(strings.TrimSuffix(o, "/"))] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowedHosts) > 0 && !allowedHosts[strings.ToLower(r.Host)] {
				writeJSON(w, http.StatusForbidden, errorBody("forbidden host"))
				return
			}
			if origin := r.Header.Get("Origin"); origin != "" && !allowedOrigins[strings.ToLower(origin)] {
				writeJSON(w, http.StatusForbidden, errorBody("forbidden origin"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
