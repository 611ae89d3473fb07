package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/subscription-service/internal/auth"
	"github.com/kevin07696/subscription-service/internal/bootstrap"
	"github.com/kevin07696/subscription-service/internal/config"
	"github.com/kevin07696/subscription-service/internal/handlers"
	billingHandler "github.com/kevin07696/subscription-service/internal/handlers/billing"
	webhookHandler "github.com/kevin07696/subscription-service/internal/handlers/webhook"
	"github.com/kevin07696/subscription-service/internal/middleware"
	"github.com/kevin07696/subscription-service/internal/services/expiry"
	"github.com/kevin07696/subscription-service/pkg/logging"
	pkgmw "github.com/kevin07696/subscription-service/pkg/middleware"
	"github.com/kevin07696/subscription-service/pkg/observability"
	"github.com/kevin07696/subscription-service/pkg/resilience"
	"github.com/kevin07696/subscription-service/pkg/shutdown"
)

const tokenExpiry = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting subscription service",
		zap.String("environment", cfg.Environment),
		zap.String("store", cfg.Store.Backend),
		zap.String("secrets", cfg.Secrets.Backend),
	)

	ctx := context.Background()

	if err := initSecrets(ctx, cfg, logger); err != nil {
		logger.Fatal("Failed to resolve secrets", zap.Error(err))
	}

	infra, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize infrastructure", zap.Error(err))
	}

	shutdownMgr := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)
	// registered first so it closes last
	infra.Each(func(name string, fn func(context.Context) error) {
		shutdownMgr.Register(name, fn)
	})

	gw := bootstrap.NewGateway(cfg, logging.NewZapLogger(logger))
	svcs, err := bootstrap.NewServices(cfg, infra, gw, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	timeouts := resilience.DefaultTimeoutConfig()
	authenticator := initAuthenticator(cfg, logger)
	rateLimiter := pkgmw.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, logger)
	inFlight := shutdown.NewInFlightTracker("http", logger)

	router := handlers.NewRouter(handlers.RouterConfig{
		Billing:       billingHandler.NewHandler(svcs.Checkout, svcs.Access, svcs.Cancellation, timeouts, logger),
		Webhook:       webhookHandler.NewHandler(svcs.Webhook, timeouts, logger),
		Authenticator: authenticator,
		RateLimiter:   rateLimiter,
		InFlight:      inFlight,
		Security:      middleware.NewSecurityHeaders(cfg.IsDevelopment()),
		Logger:        logger,
	})

	healthChecker := observability.NewHealthChecker(5 * time.Second)
	for name, check := range infra.Checks {
		healthChecker.Register(name, check)
	}
	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), healthChecker, logger)
	shutdownMgr.Register("metrics_server", func(ctx context.Context) error {
		return observability.ShutdownMetricsServer(ctx, metricsServer)
	})

	scheduler := initScheduler(cfg, svcs.Sweeper, timeouts, logger)
	if scheduler != nil {
		scheduler.Start()
		shutdownMgr.Register("expiry_scheduler", scheduler.Stop)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      timeouts.HTTPHandler + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	shutdownMgr.RegisterNoErr("rate_limiter", rateLimiter.Shutdown)
	shutdownMgr.Register("http_server", httpServer.Shutdown)
	// runs first: refuse new requests, then wait for running ones
	shutdownMgr.Register("http_inflight", inFlight.Shutdown)

	if err := shutdownMgr.WaitForSignal(ctx); err != nil {
		logger.Error("Shutdown completed with errors", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Subscription service stopped")
}

func initLogger(cfg *config.Config) *zap.Logger {
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func initSecrets(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	src, err := bootstrap.NewSecretSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return cfg.ResolveSecrets(ctx, src)
}

func initAuthenticator(cfg *config.Config, logger *zap.Logger) *middleware.Authenticator {
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("AUTH_JWT_SECRET not set; billing routes are unauthenticated")
		return middleware.NewAuthenticator(nil, logger)
	}
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, tokenExpiry)
	if err != nil {
		logger.Fatal("Failed to initialize token manager", zap.Error(err))
	}
	return middleware.NewAuthenticator(tokens, logger)
}

func initScheduler(cfg *config.Config, sweeper *expiry.Sweeper, timeouts *resilience.TimeoutConfig, logger *zap.Logger) *expiry.Scheduler {
	if cfg.Expiry.Schedule == "" {
		logger.Info("Expiry sweep disabled")
		return nil
	}
	scheduler, err := expiry.NewScheduler(sweeper, cfg.Expiry.Schedule, timeouts, logging.NewZapLogger(logger))
	if err != nil {
		logger.Fatal("Failed to schedule expiry sweep", zap.Error(err))
	}
	logger.Info("Expiry sweep scheduled", zap.String("schedule", cfg.Expiry.Schedule))
	return scheduler
}
