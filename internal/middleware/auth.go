package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kevin07696/subscription-service/internal/auth"
	"github.com/kevin07696/subscription-service/internal/domain"
)

// Authenticator requires a valid bearer token on client routes
type Authenticator struct {
	tokens *auth.TokenManager
	logger *zap.Logger
}

// NewAuthenticator creates the bearer auth middleware. A nil token manager
// disables authentication, which is only meant for local development.
func NewAuthenticator(tokens *auth.TokenManager, logger *zap.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, logger: logger}
}

// Enabled reports whether tokens are checked
func (a *Authenticator) Enabled() bool {
	return a.tokens != nil
}

// Middleware stores the token subject in the request context
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.tokens == nil {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, domain.ErrUnauthenticated)
			return
		}
		claims, err := a.tokens.ValidateToken(token)
		if err != nil {
			a.logger.Warn("Rejected bearer token",
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			writeAuthError(w, http.StatusUnauthorized, domain.ErrUnauthenticated)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), claims.Subject)))
	})
}

// ResolveUser returns the user a request acts for. An empty userID falls
// back to the token subject; a different one is Forbidden. With
// authentication disabled userID is returned unchanged.
func ResolveUser(ctx context.Context, userID string) (string, error) {
	subject, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return userID, nil
	}
	if userID == "" {
		return subject, nil
	}
	if subject != userID {
		return "", domain.ErrForbidden
	}
	return userID, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, status int, err *domain.DomainError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="billing"`)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message": err.Message,
		"code":    string(err.Code),
	})
}
