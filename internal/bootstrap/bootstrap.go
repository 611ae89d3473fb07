// Package bootstrap builds the infrastructure and services shared by the
// server and the operator CLI from a loaded config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/subscription-service/internal/adapters/events"
	"github.com/kevin07696/subscription-service/internal/adapters/gateway"
	"github.com/kevin07696/subscription-service/internal/adapters/memory"
	mongoadapter "github.com/kevin07696/subscription-service/internal/adapters/mongo"
	"github.com/kevin07696/subscription-service/internal/adapters/postgres"
	redisadapter "github.com/kevin07696/subscription-service/internal/adapters/redis"
	"github.com/kevin07696/subscription-service/internal/adapters/secrets"
	"github.com/kevin07696/subscription-service/internal/config"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/internal/services/access"
	"github.com/kevin07696/subscription-service/internal/services/cancellation"
	"github.com/kevin07696/subscription-service/internal/services/checkout"
	"github.com/kevin07696/subscription-service/internal/services/expiry"
	"github.com/kevin07696/subscription-service/internal/services/notify"
	"github.com/kevin07696/subscription-service/internal/services/webhook"
	pkghttp "github.com/kevin07696/subscription-service/pkg/http"
	"github.com/kevin07696/subscription-service/pkg/logging"
	"github.com/kevin07696/subscription-service/pkg/observability"
	"github.com/kevin07696/subscription-service/pkg/resilience"
)

const connectTimeout = 10 * time.Second

type closer struct {
	name string
	fn   func(context.Context) error
}

// Infra holds the opened backing services. Close releases them in reverse
// order of opening.
type Infra struct {
	Store     ports.SubscriptionStore
	Publisher ports.EventPublisher
	// Deduper is nil when Redis is not configured
	Deduper ports.EventDeduper
	Checks  map[string]observability.CheckFunc

	closers []closer
}

func (i *Infra) onClose(name string, fn func(context.Context) error) {
	i.closers = append(i.closers, closer{name: name, fn: fn})
}

// Each calls fn for every registered closer in opening order
func (i *Infra) Each(fn func(name string, close func(context.Context) error)) {
	for _, c := range i.closers {
		fn(c.name, c.fn)
	}
}

// Close releases everything that was opened, newest first
func (i *Infra) Close(ctx context.Context) error {
	var errs []error
	for j := len(i.closers) - 1; j >= 0; j-- {
		if err := i.closers[j].fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", i.closers[j].name, err))
		}
	}
	i.closers = nil
	return errors.Join(errs...)
}

// NewSecretSource returns the secret source selected by SECRETS_BACKEND
func NewSecretSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.SecretSource, error) {
	s := cfg.Secrets
	switch s.Backend {
	case config.SecretsAWS:
		return secrets.NewAWSSource(ctx, secrets.AWSConfig{
			Region:   s.AWSRegion,
			Profile:  s.AWSProfile,
			Endpoint: s.AWSEndpoint,
			Prefix:   s.Prefix,
			CacheTTL: s.CacheTTL,
		}, logger)
	case config.SecretsVault:
		vc := secrets.DefaultVaultConfig(s.VaultAddress)
		vc.Token = s.VaultToken
		if s.VaultToken == "" {
			vc.AuthMethod = "approle"
			vc.RoleID = s.VaultRoleID
			vc.SecretID = s.VaultSecretID
		}
		vc.Namespace = s.VaultNamespace
		vc.MountPath = s.VaultMount
		vc.KVVersion = s.VaultKVVersion
		vc.CacheTTL = s.CacheTTL
		return secrets.NewVaultSource(ctx, vc, logger)
	default:
		return secrets.NewEnvSource(), nil
	}
}

// Open connects the store, the optional Redis deduper and the event
// publisher. On failure anything already opened is closed.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Infra, error) {
	infra := &Infra{Checks: make(map[string]observability.CheckFunc)}

	if err := openStore(ctx, cfg, logger, infra); err != nil {
		_ = infra.Close(context.Background())
		return nil, err
	}

	if cfg.Redis.URL != "" {
		client, err := redisadapter.Connect(ctx, redisadapter.Config{
			URL:            cfg.Redis.URL,
			ConnectTimeout: connectTimeout,
			RetryAttempts:  3,
			RetryInterval:  time.Second,
		})
		if err != nil {
			_ = infra.Close(context.Background())
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		infra.Deduper = redisadapter.NewEventDeduper(client, cfg.Redis.DedupTTL)
		infra.Checks["redis"] = redisadapter.Healthcheck(client)
		infra.onClose("redis", func(context.Context) error { return client.Close() })
		logger.Info("Webhook dedup enabled", zap.Duration("ttl", cfg.Redis.DedupTTL))
	}

	if cfg.Events.RabbitMQURL != "" {
		pub, err := events.NewRabbitMQPublisher(cfg.Events.RabbitMQURL, cfg.Events.Exchange, logger)
		if err != nil {
			_ = infra.Close(context.Background())
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		infra.Publisher = pub
		infra.onClose("rabbitmq", func(context.Context) error { return pub.Close() })
		logger.Info("Publishing subscription events", zap.String("exchange", cfg.Events.Exchange))
	} else {
		infra.Publisher = events.NewLogPublisher(logger)
	}

	return infra, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, infra *Infra) error {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		pcfg := postgres.DefaultPoolConfig(cfg.Store.DatabaseURL)
		pcfg.MaxConns = cfg.Store.DBMaxConns
		pcfg.MinConns = cfg.Store.DBMinConns
		pool, err := postgres.NewPool(ctx, pcfg, logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		infra.Store = postgres.NewSubscriptionStore(postgres.NewDBExecutor(pool))
		infra.Checks["postgres"] = pool.Ping
		infra.onClose("postgres", func(context.Context) error {
			pool.Close()
			return nil
		})

	case config.StoreMongo:
		client, err := mongoadapter.Connect(ctx, mongoadapter.Config{
			ConnectionURL:  cfg.Store.MongoURL,
			Database:       cfg.Store.MongoDatabase,
			ConnectTimeout: connectTimeout,
			RetryInterval:  2 * time.Second,
			RetryAttempts:  3,
			MaxPoolSize:    50,
		})
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		infra.onClose("mongo", client.Disconnect)
		store := mongoadapter.NewSubscriptionStore(client.Database(cfg.Store.MongoDatabase))
		if err := store.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure mongo indexes: %w", err)
		}
		infra.Store = store
		infra.Checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }

	default:
		logger.Warn("Using in-memory subscription store; state is lost on restart")
		infra.Store = memory.NewSubscriptionStore()
	}

	logger.Info("Subscription store ready", zap.String("backend", cfg.Store.Backend))
	return nil
}

// NewGateway builds the payment gateway client with its own pooled transport
func NewGateway(cfg *config.Config, logger ports.Logger) *gateway.Client {
	retry := resilience.DefaultRetryPolicy()
	retry.MaxRetries = cfg.Gateway.MaxRetries

	breaker := gateway.DefaultBreakerConfig()
	if cfg.Gateway.BreakerFailures > 0 {
		breaker.MaxFailures = cfg.Gateway.BreakerFailures
	}

	httpClient := pkghttp.NewClient(pkghttp.GatewayClientConfig(), cfg.Gateway.Timeout)
	return gateway.NewClient(gateway.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		SecretKey: cfg.Gateway.SecretKey,
		Currency:  cfg.Gateway.Currency,
		Timeout:   cfg.Gateway.Timeout,
		Retry:     retry,
		Breaker:   breaker,
	}, httpClient, logger)
}

// Services is the set of billing services wired to one store
type Services struct {
	Notifier     *notify.Notifier
	Checkout     *checkout.Service
	Access       *access.Service
	Cancellation *cancellation.Service
	Webhook      *webhook.Service
	Sweeper      *expiry.Sweeper
}

// NewServices wires the billing services
func NewServices(cfg *config.Config, infra *Infra, gw ports.PaymentGateway, logger *zap.Logger) (*Services, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	log := logging.NewZapLogger(logger)
	notifier := notify.New(infra.Publisher, log)

	return &Services{
		Notifier:     notifier,
		Checkout:     checkout.NewService(infra.Store, gw, catalog, notifier, log),
		Access:       access.NewService(infra.Store, notifier, log),
		Cancellation: cancellation.NewService(infra.Store, gw, notifier, log),
		Webhook: webhook.NewService(infra.Store, infra.Deduper, notifier, webhook.Config{
			Secret:    cfg.Webhook.Secret,
			Tolerance: cfg.Webhook.Tolerance,
		}, log),
		Sweeper: expiry.NewSweeper(infra.Store, notifier, log, cfg.Expiry.BatchSize),
	}, nil
}
