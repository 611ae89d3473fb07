// Package config loads the service configuration from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
)

// Store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Secret backends
const (
	SecretsEnv   = "env"
	SecretsAWS   = "aws"
	SecretsVault = "vault"
)

// Config holds all application configuration
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	Server  ServerConfig
	Store   StoreConfig
	Redis   RedisConfig
	Events  EventsConfig
	Gateway GatewayConfig
	Webhook WebhookConfig
	Auth    AuthConfig
	Secrets SecretsConfig
	Prices  PriceConfig
	Expiry  ExpiryConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	MetricsPort     int           `env:"METRICS_PORT" envDefault:"9090"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	RateLimitRPS    float64       `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST" envDefault:"20"`
}

// StoreConfig selects and configures the subscription store
type StoreConfig struct {
	Backend       string `env:"STORE_BACKEND,required"`
	DatabaseURL   string `env:"DATABASE_URL"`
	DBMaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns    int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	MongoURL      string `env:"MONGO_URL"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"billing"`
}

// RedisConfig enables webhook event dedup when URL is set
type RedisConfig struct {
	URL      string        `env:"REDIS_URL"`
	DedupTTL time.Duration `env:"WEBHOOK_DEDUP_TTL" envDefault:"72h"`
}

// EventsConfig enables RabbitMQ publishing when URL is set
type EventsConfig struct {
	RabbitMQURL string `env:"RABBITMQ_URL"`
	Exchange    string `env:"EVENTS_EXCHANGE" envDefault:"billing.subscription.events"`
}

// GatewayConfig holds payment gateway settings
type GatewayConfig struct {
	BaseURL         string        `env:"GATEWAY_BASE_URL" envDefault:"https://api.stripe.com"`
	SecretKey       string        `env:"GATEWAY_SECRET_KEY"`
	SecretKeyName   string        `env:"GATEWAY_SECRET_KEY_NAME" envDefault:"billing/gateway-secret-key"`
	Currency        string        `env:"GATEWAY_CURRENCY" envDefault:"usd"`
	Timeout         time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"30s"`
	MaxRetries      uint64        `env:"GATEWAY_MAX_RETRIES" envDefault:"3"`
	BreakerFailures uint32        `env:"GATEWAY_BREAKER_FAILURES" envDefault:"5"`
}

// WebhookConfig holds webhook verification settings
type WebhookConfig struct {
	Secret     string        `env:"WEBHOOK_SECRET"`
	SecretName string        `env:"WEBHOOK_SECRET_NAME" envDefault:"billing/webhook-secret"`
	Tolerance  time.Duration `env:"WEBHOOK_TOLERANCE" envDefault:"5m"`
}

// AuthConfig enables bearer auth when JWTSecret is set
type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET"`
	Issuer    string `env:"AUTH_JWT_ISSUER"`
}

// SecretsConfig selects where the gateway key and webhook secret come from
type SecretsConfig struct {
	Backend        string        `env:"SECRETS_BACKEND" envDefault:"env"`
	CacheTTL       time.Duration `env:"SECRETS_CACHE_TTL" envDefault:"5m"`
	AWSRegion      string        `env:"AWS_REGION"`
	AWSProfile     string        `env:"AWS_PROFILE"`
	AWSEndpoint    string        `env:"AWS_SECRETS_ENDPOINT"`
	Prefix         string        `env:"SECRETS_PREFIX"`
	VaultAddress   string        `env:"VAULT_ADDR"`
	VaultToken     string        `env:"VAULT_TOKEN"`
	VaultRoleID    string        `env:"VAULT_ROLE_ID"`
	VaultSecretID  string        `env:"VAULT_SECRET_ID"`
	VaultNamespace string        `env:"VAULT_NAMESPACE"`
	VaultMount     string        `env:"VAULT_MOUNT" envDefault:"secret"`
	VaultKVVersion string        `env:"VAULT_KV_VERSION" envDefault:"v2"`
}

// PriceConfig holds plan prices as decimal strings in the gateway currency
type PriceConfig struct {
	Trial   string `env:"PRICE_TRIAL" envDefault:"0.50"`
	Monthly string `env:"PRICE_MONTHLY" envDefault:"9.99"`
	Annual  string `env:"PRICE_ANNUAL" envDefault:"99.99"`
}

// ExpiryConfig schedules the expiry sweep; an empty schedule disables it
type ExpiryConfig struct {
	Schedule  string `env:"EXPIRY_SWEEP_SCHEDULE" envDefault:"@every 15m"`
	BatchSize int    `env:"EXPIRY_SWEEP_BATCH" envDefault:"100"`
}

// Load reads an optional .env file, then the process environment
func Load() (*Config, error) {
	// a missing .env file is normal outside local development
	_ = godotenv.Load()
	return parse(env.Options{})
}

// LoadFrom parses the given environment only, for tests and tooling
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field rules and reports every problem at once.
// Secrets may still be empty here when a secret backend supplies them.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreMongo:
		if c.Store.MongoURL == "" {
			errs = append(errs, errors.New("MONGO_URL is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be one of memory, postgres, mongo; got %q", c.Store.Backend))
	}

	switch c.Secrets.Backend {
	case SecretsEnv:
		if c.Gateway.SecretKey == "" {
			errs = append(errs, errors.New("GATEWAY_SECRET_KEY is required"))
		}
		if c.Webhook.Secret == "" {
			errs = append(errs, errors.New("WEBHOOK_SECRET is required"))
		}
	case SecretsAWS:
		if c.Secrets.AWSRegion == "" {
			errs = append(errs, errors.New("AWS_REGION is required for the aws secrets backend"))
		}
	case SecretsVault:
		if c.Secrets.VaultAddress == "" {
			errs = append(errs, errors.New("VAULT_ADDR is required for the vault secrets backend"))
		}
		if c.Secrets.VaultToken == "" && (c.Secrets.VaultRoleID == "" || c.Secrets.VaultSecretID == "") {
			errs = append(errs, errors.New("VAULT_TOKEN or VAULT_ROLE_ID and VAULT_SECRET_ID are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("SECRETS_BACKEND must be one of env, aws, vault; got %q", c.Secrets.Backend))
	}

	if _, err := c.Catalog(); err != nil {
		errs = append(errs, fmt.Errorf("invalid prices: %w", err))
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	if c.Webhook.Tolerance < 0 {
		errs = append(errs, errors.New("WEBHOOK_TOLERANCE must not be negative"))
	}

	return errors.Join(errs...)
}

// Catalog builds the price catalog
func (c *Config) Catalog() (*domain.Catalog, error) {
	return domain.NewCatalog(c.Prices.Trial, c.Prices.Monthly, c.Prices.Annual)
}

// IsDevelopment reports whether the service runs in a development environment
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.Environment) {
	case "development", "dev", "local", "test":
		return true
	}
	return false
}

// ResolveSecrets fills the gateway key and webhook secret from src when they
// were not set directly
func (c *Config) ResolveSecrets(ctx context.Context, src ports.SecretSource) error {
	var errs []error
	resolve := func(dst *string, name, label string) {
		if *dst != "" {
			return
		}
		v, err := src.GetSecret(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolve %s (%s): %w", label, name, err))
			return
		}
		if v == "" {
			errs = append(errs, fmt.Errorf("resolve %s (%s): empty secret", label, name))
			return
		}
		*dst = v
	}
	resolve(&c.Gateway.SecretKey, c.Gateway.SecretKeyName, "gateway secret key")
	resolve(&c.Webhook.Secret, c.Webhook.SecretName, "webhook secret")
	return errors.Join(errs...)
}
