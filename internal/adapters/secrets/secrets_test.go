package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEnvSource(t *testing.T) {
	src := &EnvSource{lookup: func(key string) (string, bool) {
		if key == "GATEWAY_SECRET_KEY" {
			return "sk_test", true
		}
		return "", false
	}}

	v, err := src.GetSecret(context.Background(), "gateway/secret-key")
	require.NoError(t, err)
	assert.Equal(t, "sk_test", v)

	_, err = src.GetSecret(context.Background(), "webhook/secret")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "BILLING_WEBHOOK_SECRET", EnvKey("billing/webhook-secret"))
	assert.Equal(t, "A_B_C", EnvKey("a.b-c"))
}

func TestSecretCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newSecretCache(time.Minute)
	c.set("k", "v", now)

	v, ok := c.get("k", now.Add(30*time.Second))
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	_, ok = c.get("k", now.Add(2*time.Minute))
	assert.False(t, ok)

	disabled := newSecretCache(0)
	disabled.set("k", "v", now)
	_, ok = disabled.get("k", now)
	assert.False(t, ok)
}

type mockSecretsManager struct {
	mock.Mock
}

func (m *mockSecretsManager) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	args := m.Called(ctx, aws.ToString(params.SecretId))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*secretsmanager.GetSecretValueOutput), args.Error(1)
}

func TestAWSSource_PlainAndJSONKeys(t *testing.T) {
	client := &mockSecretsManager{}
	client.On("GetSecretValue", mock.Anything, "prod/gateway").
		Return(&secretsmanager.GetSecretValueOutput{SecretString: aws.String("sk_live")}, nil).Once()
	client.On("GetSecretValue", mock.Anything, "prod/billing").
		Return(&secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"webhook":"whsec_1"}`)}, nil).Once()

	src := newAWSSource(client, AWSConfig{Prefix: "prod/", CacheTTL: time.Minute}, zap.NewNop())
	ctx := context.Background()

	v, err := src.GetSecret(ctx, "gateway")
	require.NoError(t, err)
	assert.Equal(t, "sk_live", v)

	// served from cache, the mock allows a single call
	v, err = src.GetSecret(ctx, "gateway")
	require.NoError(t, err)
	assert.Equal(t, "sk_live", v)

	v, err = src.GetSecret(ctx, "billing#webhook")
	require.NoError(t, err)
	assert.Equal(t, "whsec_1", v)

	client.AssertExpectations(t)
}

func TestAWSSource_Errors(t *testing.T) {
	client := &mockSecretsManager{}
	client.On("GetSecretValue", mock.Anything, "missing").Return(nil, errors.New("ResourceNotFoundException"))
	client.On("GetSecretValue", mock.Anything, "json").
		Return(&secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"a":"b"}`)}, nil)

	src := newAWSSource(client, AWSConfig{}, zap.NewNop())

	_, err := src.GetSecret(context.Background(), "missing")
	assert.Error(t, err)

	_, err = src.GetSecret(context.Background(), "json#nope")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestVaultSource_KVv2(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "root-token", r.Header.Get("X-Vault-Token"))
		switch r.URL.Path {
		case "/v1/secret/data/billing/gateway":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"data":     map[string]interface{}{"value": "sk_vault", "webhook": "whsec_vault"},
					"metadata": map[string]interface{}{"version": 3},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
		}
	}))
	defer srv.Close()

	cfg := DefaultVaultConfig(srv.URL)
	cfg.Token = "root-token"
	src, err := NewVaultSource(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	v, err := src.GetSecret(context.Background(), "billing/gateway")
	require.NoError(t, err)
	assert.Equal(t, "sk_vault", v)

	v, err = src.GetSecret(context.Background(), "billing/gateway#webhook")
	require.NoError(t, err)
	assert.Equal(t, "whsec_vault", v)

	_, err = src.GetSecret(context.Background(), "billing/missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestNewVaultSource_RequiresToken(t *testing.T) {
	_, err := NewVaultSource(context.Background(), DefaultVaultConfig("http://127.0.0.1:1"), zap.NewNop())
	assert.Error(t, err)
}
