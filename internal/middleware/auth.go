package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"factory-hook/internal/config"
)

// AuthenticationMiddleware creates middleware for bearer token authentication
func AuthenticationMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.EnableAuthentication {
				next.ServeHTTP(w, r)
				return
			}

			token := extractBearerToken(r)
			if token == "" {
				slog.Warn("Request missing bearer token",
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"request_id", RequestIDFromContext(r.Context()),
				)
				http.Error(w, "Unauthorized: Bearer token required", http.StatusUnauthorized)
				return
			}

			if !validateToken(token, cfg.BearerToken) {
				slog.Warn("Invalid bearer token provided",
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"request_id", RequestIDFromContext(r.Context()),
					"token", "***",
				)
				http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken extracts the bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	const bearerPrefix = "Bearer "
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(bearerPrefix):])
}

// validateToken compares in constant time; an unset expected token rejects everything
func validateToken(token, expectedToken string) bool {
	if expectedToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) == 1
}
