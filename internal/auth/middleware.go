package auth

import (
	"context"
	"net/http"
	"strings"

	pkghttp "github.com/BradenHooton/authwatch/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// ReporterContextKey is the key for storing the authenticated reporter ID in context
	ReporterContextKey contextKey = "reporter"

	// APIKeyHeader carries a reporter API key
	APIKeyHeader = "X-API-Key"

	apiKeyReporterID = "api-key"
)

// RequireReporter authenticates the calling service with either an X-API-Key header or
// a Bearer reporter token. With neither mechanism configured every request passes.
func RequireReporter(tm *TokenManager, keys *APIKeyVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tm == nil && !keys.Enabled() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey := r.Header.Get(APIKeyHeader); apiKey != "" {
				if !keys.Verify(apiKey) {
					pkghttp.WriteUnauthorized(w, "invalid API key")
					return
				}
				next.ServeHTTP(w, withReporter(r, apiKeyReporterID))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteUnauthorized(w, "missing credentials")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				pkghttp.WriteUnauthorized(w, "invalid authorization header format")
				return
			}

			if tm == nil {
				pkghttp.WriteUnauthorized(w, "bearer tokens are not accepted")
				return
			}

			claims, err := tm.ValidateToken(parts[1])
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, withReporter(r, claims.ReporterID))
		})
	}
}

// GetReporterFromContext returns the authenticated reporter ID, or "" when unauthenticated
func GetReporterFromContext(ctx context.Context) string {
	reporter, _ := ctx.Value(ReporterContextKey).(string)
	return reporter
}

func withReporter(r *http.Request, reporterID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ReporterContextKey, reporterID))
}
