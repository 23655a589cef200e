package middleware

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader carries the shared API key.
const APIKeyHeader = "X-API-Key"

// Authentication rejects requests without the configured API key. An empty
// key disables the check.
func Authentication(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
				w.Header().Set("WWW-Authenticate", "API-Key")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
