package secrets

import (
	"context"
	"fmt"
	"strings"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"go.uber.org/zap"
)

// VaultConfig configures the HashiCorp Vault KV source
type VaultConfig struct {
	Address string
	// AuthMethod is "token" or "approle"
	AuthMethod string
	Token      string
	RoleID     string
	SecretID   string
	Namespace  string
	MountPath  string
	// KVVersion is "v1" or "v2"
	KVVersion string
	CacheTTL  time.Duration
}

// DefaultVaultConfig returns token auth against a KV v2 mount named "secret"
func DefaultVaultConfig(address string) VaultConfig {
	return VaultConfig{
		Address:    address,
		AuthMethod: "token",
		MountPath:  "secret",
		KVVersion:  "v2",
		CacheTTL:   5 * time.Minute,
	}
}

// VaultSource reads secrets from a Vault KV mount. A name "path#field"
// selects field; without a field the "value" key is used.
type VaultSource struct {
	client *vault.Client
	cache  *secretCache
	logger *zap.Logger
	cfg    VaultConfig
}

var _ ports.SecretSource = (*VaultSource)(nil)

// NewVaultSource creates a client and authenticates it
func NewVaultSource(ctx context.Context, cfg VaultConfig, logger *zap.Logger) (*VaultSource, error) {
	if cfg.MountPath == "" {
		cfg.MountPath = "secret"
	}
	if cfg.KVVersion == "" {
		cfg.KVVersion = "v2"
	}

	vcfg := vault.DefaultConfig()
	vcfg.Address = cfg.Address
	client, err := vault.NewClient(vcfg)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	if err := authenticateVault(ctx, client, cfg); err != nil {
		return nil, fmt.Errorf("authenticate with vault: %w", err)
	}

	logger.Info("Vault source initialized",
		zap.String("address", cfg.Address),
		zap.String("auth_method", cfg.AuthMethod),
		zap.String("mount_path", cfg.MountPath),
		zap.String("kv_version", cfg.KVVersion),
	)
	return &VaultSource{client: client, cache: newSecretCache(cfg.CacheTTL), logger: logger, cfg: cfg}, nil
}

func authenticateVault(ctx context.Context, client *vault.Client, cfg VaultConfig) error {
	switch cfg.AuthMethod {
	case "token", "":
		if cfg.Token == "" {
			return fmt.Errorf("token is required for token auth")
		}
		client.SetToken(cfg.Token)
		return nil
	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return fmt.Errorf("role_id and secret_id are required for AppRole auth")
		}
		resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return fmt.Errorf("AppRole login failed: %w", err)
		}
		if resp == nil || resp.Auth == nil {
			return fmt.Errorf("AppRole login returned no auth info")
		}
		client.SetToken(resp.Auth.ClientToken)
		return nil
	}
	return fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
}

func (s *VaultSource) GetSecret(ctx context.Context, name string) (string, error) {
	if v, ok := s.cache.get(name, time.Now()); ok {
		return v, nil
	}

	path, field, _ := strings.Cut(name, "#")
	if field == "" {
		field = "value"
	}
	fullPath := s.cfg.MountPath + "/" + path
	if s.cfg.KVVersion == "v2" {
		fullPath = s.cfg.MountPath + "/data/" + path
	}

	secret, err := s.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		s.logger.Error("Failed to read secret from Vault", zap.String("name", name), zap.Error(err))
		return "", fmt.Errorf("read secret %s: %w", name, err)
	}
	if secret == nil {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}

	data := secret.Data
	if s.cfg.KVVersion == "v2" {
		inner, ok := secret.Data["data"].(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("invalid KV v2 payload for %s", name)
		}
		data = inner
	}
	value, _ := data[field].(string)
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}

	s.cache.set(name, value, time.Now())
	return value, nil
}
