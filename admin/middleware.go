// Package admin exposes a chi-routed HTTP surface over the replica-set
// topology coordinator: status, isMaster, config, freeze, and stepDown.
// Handlers never touch topology.Coordinator directly — they go through
// the Service interface, which the runtime package implements behind its
// own lock.
package admin

import (
	"net/http"
	"strings"
)

// AuthMiddleware validates the configured admin token. If no token is
// configured, authentication is skipped entirely.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-Replset-Token")
			if provided == "" {
				authHeader := r.Header.Get("Authorization")
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && parts[0] == "Bearer" {
					provided = parts[1]
				}
			}

			if provided != token {
				writeErrorResponse(w, http.StatusUnauthorized, "invalid or missing admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
