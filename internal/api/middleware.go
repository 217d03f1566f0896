/**
 * @description
 * Middleware for the settlement-service's internal API. The service has no
 * user-facing surface; every caller is another platform service, authenticated
 * with a shared internal API key.
 */

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// InternalAuthMiddleware rejects requests that do not carry the configured
// internal API key in the X-Internal-Api-Key header.
func InternalAuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := strings.TrimSpace(r.Header.Get("X-Internal-Api-Key"))
			if provided == "" {
				http.Error(w, "internal API key required", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				http.Error(w, "invalid internal API key", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
