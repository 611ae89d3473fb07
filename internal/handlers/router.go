// Package handlers assembles the public HTTP router.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kevin07696/subscription-service/internal/handlers/billing"
	"github.com/kevin07696/subscription-service/internal/handlers/webhook"
	"github.com/kevin07696/subscription-service/internal/middleware"
	pkgmw "github.com/kevin07696/subscription-service/pkg/middleware"
	"github.com/kevin07696/subscription-service/pkg/observability"
	"github.com/kevin07696/subscription-service/pkg/shutdown"
)

// RouterConfig holds everything the router mounts. Nil middleware is skipped.
type RouterConfig struct {
	Billing       *billing.Handler
	Webhook       *webhook.Handler
	Authenticator *middleware.Authenticator
	RateLimiter   *pkgmw.RateLimiter
	InFlight      *shutdown.InFlightTracker
	Security      *middleware.SecurityHeaders
	Logger        *zap.Logger
}

// NewRouter builds the public router. The webhook route sits outside bearer
// auth and rate limiting; it is authenticated by signature.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(recoverer(cfg.Logger))
	r.Use(observability.HTTPMetrics)
	if cfg.InFlight != nil {
		r.Use(cfg.InFlight.Middleware)
	}
	if cfg.Security != nil {
		r.Use(cfg.Security.Middleware)
	}
	r.Use(requestLogger(cfg.Logger))

	if cfg.Webhook != nil {
		cfg.Webhook.Routes(r)
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}
		if cfg.Authenticator != nil {
			r.Use(cfg.Authenticator.Middleware)
		}
		cfg.Billing.Routes(r)
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			}
			if ww.Status() >= http.StatusInternalServerError {
				logger.Error("HTTP request failed", fields...)
				return
			}
			logger.Debug("HTTP request", fields...)
		})
	}
}

func recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("Panic recovered",
						zap.Any("panic", rec),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Stack("stack"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"message":"internal error","code":"INTERNAL_ERROR"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
