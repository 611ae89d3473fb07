package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"STORE_BACKEND":      "memory",
		"GATEWAY_SECRET_KEY": "sk_test_123",
		"WEBHOOK_SECRET":     "whsec_123",
	}
}

func with(overrides map[string]string) map[string]string {
	env := baseEnv()
	for k, v := range overrides {
		if v == "" {
			delete(env, k)
			continue
		}
		env[k] = v
	}
	return env
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(baseEnv())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 9090, cfg.Server.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Webhook.Tolerance)
	assert.Equal(t, "usd", cfg.Gateway.Currency)
	assert.Equal(t, "@every 15m", cfg.Expiry.Schedule)
	assert.Equal(t, SecretsEnv, cfg.Secrets.Backend)
	assert.True(t, cfg.IsDevelopment())

	catalog, err := cfg.Catalog()
	require.NoError(t, err)
	assert.NotNil(t, catalog)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing store backend", with(map[string]string{"STORE_BACKEND": ""}), "STORE_BACKEND"},
		{"unknown store backend", with(map[string]string{"STORE_BACKEND": "sqlite"}), "STORE_BACKEND must be one of"},
		{"postgres without url", with(map[string]string{"STORE_BACKEND": "postgres"}), "DATABASE_URL"},
		{"mongo without url", with(map[string]string{"STORE_BACKEND": "mongo"}), "MONGO_URL"},
		{"missing gateway key", with(map[string]string{"GATEWAY_SECRET_KEY": ""}), "GATEWAY_SECRET_KEY"},
		{"missing webhook secret", with(map[string]string{"WEBHOOK_SECRET": ""}), "WEBHOOK_SECRET"},
		{"aws without region", with(map[string]string{"SECRETS_BACKEND": "aws"}), "AWS_REGION"},
		{"vault without auth", with(map[string]string{"SECRETS_BACKEND": "vault", "VAULT_ADDR": "http://vault:8200"}), "VAULT_TOKEN"},
		{"bad price", with(map[string]string{"PRICE_MONTHLY": "nine"}), "invalid prices"},
		{"bad duration", with(map[string]string{"GATEWAY_TIMEOUT": "soon"}), "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.env)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	_, err := LoadFrom(map[string]string{"STORE_BACKEND": "postgres"})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "GATEWAY_SECRET_KEY")
	assert.Contains(t, err.Error(), "WEBHOOK_SECRET")
}

func TestLoadFrom_SecretBackendDefersSecrets(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"STORE_BACKEND":   "memory",
		"SECRETS_BACKEND": "aws",
		"AWS_REGION":      "us-east-1",
	})
	require.NoError(t, err)
	assert.Empty(t, cfg.Gateway.SecretKey)
}

type mapSource map[string]string

func (m mapSource) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func TestResolveSecrets(t *testing.T) {
	t.Run("fills missing values", func(t *testing.T) {
		cfg := &Config{
			Gateway: GatewayConfig{SecretKeyName: "billing/gateway-secret-key"},
			Webhook: WebhookConfig{SecretName: "billing/webhook-secret"},
		}
		src := mapSource{"billing/gateway-secret-key": "sk_live", "billing/webhook-secret": "whsec_live"}

		require.NoError(t, cfg.ResolveSecrets(context.Background(), src))
		assert.Equal(t, "sk_live", cfg.Gateway.SecretKey)
		assert.Equal(t, "whsec_live", cfg.Webhook.Secret)
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		cfg := &Config{
			Gateway: GatewayConfig{SecretKey: "sk_env"},
			Webhook: WebhookConfig{Secret: "whsec_env"},
		}

		require.NoError(t, cfg.ResolveSecrets(context.Background(), mapSource{}))
		assert.Equal(t, "sk_env", cfg.Gateway.SecretKey)
	})

	t.Run("reports every missing secret", func(t *testing.T) {
		cfg := &Config{
			Gateway: GatewayConfig{SecretKeyName: "a"},
			Webhook: WebhookConfig{SecretName: "b"},
		}

		err := cfg.ResolveSecrets(context.Background(), mapSource{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gateway secret key")
		assert.Contains(t, err.Error(), "webhook secret")
	})
}
