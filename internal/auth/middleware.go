package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Context keys
type contextKey string

const userClaimsKey contextKey = "user_claims"

// WithUserClaims adds user claims to the context.
func WithUserClaims(ctx context.Context, claims *UserClaims) context.Context {
	return context.WithValue(ctx, userClaimsKey, claims)
}

// GetUserClaims extracts user claims from the context.
func GetUserClaims(ctx context.Context) (*UserClaims, bool) {
	claims, ok := ctx.Value(userClaimsKey).(*UserClaims)
	return claims, ok
}

// GetUserID is a convenience function to get the user ID from the context.
func GetUserID(ctx context.Context) (string, bool) {
	if claims, ok := GetUserClaims(ctx); ok {
		return claims.UID, true
	}
	return "", false
}

// Middleware verifies the Firebase bearer token on every request and
// stores the resulting claims in the request context. Requests without a
// valid token are rejected with 401, except on public endpoints, which
// pass through without claims and do their own checks.
func Middleware(firebaseAuth *FirebaseAuth, log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicEndpoint(r.URL.Path) && r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, err := ExtractTokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				unauthorized(w, "missing or malformed bearer token")
				return
			}

			claims, err := firebaseAuth.VerifyToken(r.Context(), token)
			if err != nil {
				log.WithError(err).Debug("token verification failed")
				unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserClaims(r.Context(), claims)))
		})
	}
}

// LocalDevMiddleware provides a mock identity for local development, with
// optional impersonation via the X-Debug-Impersonate-User header.
// Never mount this in production.
func LocalDevMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := &UserClaims{
				UID:         "local-dev-user",
				Email:       "dev@localhost",
				DisplayName: "Local Dev User",
				Verified:    true,
			}
			if impersonate := r.Header.Get("X-Debug-Impersonate-User"); impersonate != "" {
				claims = &UserClaims{
					UID:   impersonate,
					Email: impersonate + "@debug.local",
				}
			}
			next.ServeHTTP(w, r.WithContext(WithUserClaims(r.Context(), claims)))
		})
	}
}

// isPublicEndpoint reports whether a path is reachable without user
// authentication. The digest endpoint authenticates scheduler calls with
// a shared secret instead of a user token.
func isPublicEndpoint(path string) bool {
	publicEndpoints := []string{
		"/health",
		"/api/v1/digest",
	}
	for _, endpoint := range publicEndpoints {
		if path == endpoint {
			return true
		}
	}
	return false
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
