package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/movierec/backend/internal/models"
	"go.uber.org/zap"
)

type contextKey string

const identityKey contextKey = "identity"

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
// It returns an empty string when the header is missing or malformed.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// RoleMiddleware validates the bearer token and requires the given role.
// On success the resolved identity is attached to the request context.
func RoleMiddleware(guard *Guard, requiredRole models.Role, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := guard.Authorize(r.Context(), BearerToken(r), requiredRole)
			if err != nil {
				switch {
				case errors.Is(err, ErrUnauthenticated):
					logger.Warn("unauthenticated access attempt", zap.String("path", r.URL.Path), zap.Error(err))
					writeError(w, http.StatusUnauthorized, `{"error":"authentication required"}`)
				case errors.Is(err, ErrForbidden):
					logger.Warn("forbidden access attempt", zap.String("path", r.URL.Path), zap.Error(err))
					writeError(w, http.StatusForbidden, `{"error":"insufficient permissions"}`)
				default:
					logger.Error("failed to authorize request", zap.String("path", r.URL.Path), zap.Error(err))
					writeError(w, http.StatusInternalServerError, `{"error":"internal server error"}`)
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// WithIdentity returns a copy of ctx carrying identity
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity retrieves the identity attached by RoleMiddleware
func GetIdentity(ctx context.Context) (*models.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*models.Identity)
	return identity, ok && identity != nil
}

func writeError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
