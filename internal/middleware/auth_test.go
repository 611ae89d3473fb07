package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevin07696/subscription-service/internal/auth"
	"github.com/kevin07696/subscription-service/internal/domain"
)

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.UserIDFromContext(r.Context())
		_, _ = w.Write([]byte(id))
	})
}

func TestAuthenticator(t *testing.T) {
	tokens, err := auth.NewTokenManager("secret", "", time.Hour)
	require.NoError(t, err)
	valid, err := tokens.GenerateToken("user-1", "")
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, "user-1"},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, "user-1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ""},
	}

	h := NewAuthenticator(tokens, zap.NewNop()).Middleware(echoUser())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/access?userId=user-1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, rec.Body.String())
				return
			}
			assert.Contains(t, rec.Body.String(), string(domain.ErrorCodeUnauthenticated))
		})
	}
}

func TestAuthenticator_Disabled(t *testing.T) {
	a := NewAuthenticator(nil, zap.NewNop())
	rec := httptest.NewRecorder()

	a.Middleware(echoUser()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, a.Enabled())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResolveUser(t *testing.T) {
	ctx := auth.WithUserID(context.Background(), "user-1")

	tests := []struct {
		name    string
		ctx     context.Context
		userID  string
		want    string
		wantErr error
	}{
		{"matching subject", ctx, "user-1", "user-1", nil},
		{"empty falls back to subject", ctx, "", "user-1", nil},
		{"other user", ctx, "user-2", "", domain.ErrForbidden},
		{"auth disabled", context.Background(), "anyone", "anyone", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveUser(tt.ctx, tt.userID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	NewSecurityHeaders(false).Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = httptest.NewRecorder()
	NewSecurityHeaders(true).Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}
