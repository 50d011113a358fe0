package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/cashlens/cashlens/internal/config"
)

type contextKey string

const ownerKey contextKey = "owner"

// DefaultOwner scopes all data when API key auth is disabled.
const DefaultOwner = "default"

// OwnerFromContext returns the authenticated owner for the request.
// Falls back to DefaultOwner when auth is disabled.
func OwnerFromContext(ctx context.Context) string {
	if owner, ok := ctx.Value(ownerKey).(string); ok && owner != "" {
		return owner
	}
	return DefaultOwner
}

// APIKeyAuth returns middleware that validates the X-API-Key header against
// the configured owner:key pairs and stores the matching owner in the
// request context. Every staged session and ledger row downstream is scoped
// to that owner.
// If RequireAPIKey is false, all requests pass through as DefaultOwner.
// If RequireAPIKey is true but no keys are configured, all requests are rejected.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	owners := cfg.KeyOwners()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip validation if auth is disabled
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				slog.Warn("auth: missing API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				http.Error(w, `{"error":"missing API key","code":"AUTH_MISSING_KEY"}`, http.StatusUnauthorized)
				return
			}

			owner, ok := resolveOwner(apiKey, owners)
			if !ok {
				slog.Warn("auth: invalid API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				http.Error(w, `{"error":"invalid API key","code":"AUTH_INVALID_KEY"}`, http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), ownerKey, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveOwner finds the owner for a key using constant-time comparison.
// ALL keys are checked regardless of an early match, so the comparison time
// does not reveal which key (if any) matched.
func resolveOwner(key string, owners map[string]string) (string, bool) {
	var (
		matched string
		valid   int
	)
	for candidate, owner := range owners {
		if subtle.ConstantTimeCompare([]byte(key), []byte(candidate)) == 1 {
			matched = owner
			valid = 1
		}
	}
	return matched, valid == 1
}
