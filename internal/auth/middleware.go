package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/mriscan/internal/models"
	pkghttp "github.com/BradenHooton/mriscan/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing session claims in context
	UserContextKey contextKey = "user"
)

// Authenticator resolves a raw session token to claims, including any
// revocation check.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.SessionClaims, error)
}

// TokenFromRequest returns the session token from the cookie, falling back
// to an Authorization: Bearer header.
func TokenFromRequest(r *http.Request) string {
	if tokens := tokensFromRequest(r); len(tokens) > 0 {
		return tokens[0]
	}
	return ""
}

// tokensFromRequest returns the cookie token and then the bearer token,
// skipping empty and duplicate values.
func tokensFromRequest(r *http.Request) []string {
	var tokens []string
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		tokens = append(tokens, cookie.Value)
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		if bearer := strings.TrimSpace(parts[1]); bearer != "" && (len(tokens) == 0 || tokens[0] != bearer) {
			tokens = append(tokens, bearer)
		}
	}

	return tokens
}

// SessionMiddleware rejects requests without a valid session and injects
// the claims into the request context. A cookie that fails verification
// does not hide a valid bearer token.
func SessionMiddleware(authn Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, token := range tokensFromRequest(r) {
				claims, err := authn.Authenticate(r.Context(), token)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
					return
				}
				if !errors.Is(err, models.ErrUnauthorized) {
					pkghttp.WriteInternalError(w, "Internal server error")
					return
				}
			}

			pkghttp.WriteUnauthorized(w, "Unauthorized")
		})
	}
}

// RequireAdminMiddleware gates a route group to admins. It must run after
// SessionMiddleware.
func RequireAdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch err := RequireAdmin(GetClaimsFromContext(r)); {
		case err == nil:
			next.ServeHTTP(w, r)
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Forbidden")
		default:
			pkghttp.WriteUnauthorized(w, "Unauthorized")
		}
	})
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *models.SessionClaims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// GetClaimsFromContext extracts session claims from request context
func GetClaimsFromContext(r *http.Request) *models.SessionClaims {
	claims, ok := r.Context().Value(UserContextKey).(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}
