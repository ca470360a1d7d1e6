package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/mriscan/internal/auth"
	"github.com/BradenHooton/mriscan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthenticator struct {
	claims *models.SessionClaims
	err    error
	seen   string
}

func (s *stubAuthenticator) Authenticate(ctx context.Context, token string) (*models.SessionClaims, error) {
	s.seen = token
	return s.claims, s.err
}

// tokenAuthenticator accepts only the tokens it maps.
type tokenAuthenticator map[string]*models.SessionClaims

func (a tokenAuthenticator) Authenticate(ctx context.Context, token string) (*models.SessionClaims, error) {
	if claims, ok := a[token]; ok {
		return claims, nil
	}
	return nil, models.ErrUnauthorized
}

func okHandler(t *testing.T, want *models.SessionClaims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, want, auth.GetClaimsFromContext(r))
		w.WriteHeader(http.StatusOK)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestTokenFromRequest(t *testing.T) {
	t.Run("cookie wins over header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "from-cookie"})
		req.Header.Set("Authorization", "Bearer from-header")
		assert.Equal(t, "from-cookie", auth.TokenFromRequest(req))
	})

	t.Run("bearer fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer abc")
		assert.Equal(t, "abc", auth.TokenFromRequest(req))
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic abc")
		assert.Empty(t, auth.TokenFromRequest(req))
	})
}

func TestSessionMiddleware(t *testing.T) {
	claims := &models.SessionClaims{UserID: "u1", Email: "a@x.io", Role: models.RoleUser}

	t.Run("no token", func(t *testing.T) {
		stub := &stubAuthenticator{claims: claims}
		rec := httptest.NewRecorder()

		auth.SessionMiddleware(stub)(okHandler(t, claims)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized", decodeError(t, rec))
		assert.Empty(t, stub.seen)
	})

	t.Run("invalid token", func(t *testing.T) {
		stub := &stubAuthenticator{err: models.ErrUnauthorized}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "bad"})
		rec := httptest.NewRecorder()

		auth.SessionMiddleware(stub)(okHandler(t, nil)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "bad", stub.seen)
	})

	t.Run("store failure", func(t *testing.T) {
		stub := &stubAuthenticator{err: assert.AnError}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer tok")
		rec := httptest.NewRecorder()

		auth.SessionMiddleware(stub)(okHandler(t, nil)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("stale cookie falls back to bearer", func(t *testing.T) {
		authn := tokenAuthenticator{"fresh": claims}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "stale"})
		req.Header.Set("Authorization", "Bearer fresh")
		rec := httptest.NewRecorder()

		auth.SessionMiddleware(authn)(okHandler(t, claims)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("stale cookie and stale bearer", func(t *testing.T) {
		authn := tokenAuthenticator{"fresh": claims}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "stale"})
		req.Header.Set("Authorization", "Bearer also-stale")
		rec := httptest.NewRecorder()

		auth.SessionMiddleware(authn)(okHandler(t, nil)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		stub := &stubAuthenticator{claims: claims}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "good"})
		rec := httptest.NewRecorder()

		auth.SessionMiddleware(stub)(okHandler(t, claims)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireAdminMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		claims *models.SessionClaims
		want   int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"user", &models.SessionClaims{UserID: "u1", Role: models.RoleUser}, http.StatusForbidden},
		{"admin", &models.SessionClaims{UserID: "a1", Role: models.RoleAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
			if tt.claims != nil {
				req = req.WithContext(auth.WithClaims(req.Context(), tt.claims))
			}
			rec := httptest.NewRecorder()

			auth.RequireAdminMiddleware(okHandler(t, tt.claims)).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSessionCookie(t *testing.T) {
	cfg := auth.CookieConfig{Secure: true}

	rec := httptest.NewRecorder()
	auth.SetSessionCookie(rec, "tok", 7*24*time.Hour, cfg)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
	assert.Equal(t, 7*24*60*60, cookies[0].MaxAge)

	rec = httptest.NewRecorder()
	auth.ClearSessionCookie(rec, cfg)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}
