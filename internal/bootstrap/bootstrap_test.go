package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevin07696/subscription-service/internal/adapters/events"
	"github.com/kevin07696/subscription-service/internal/adapters/memory"
	"github.com/kevin07696/subscription-service/internal/adapters/secrets"
	"github.com/kevin07696/subscription-service/internal/config"
	"github.com/kevin07696/subscription-service/internal/testutil/mocks"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(map[string]string{
		"STORE_BACKEND":      "memory",
		"GATEWAY_SECRET_KEY": "sk_test_123",
		"WEBHOOK_SECRET":     "whsec_123",
	})
	require.NoError(t, err)
	return cfg
}

func TestOpen_Memory(t *testing.T) {
	cfg := memoryConfig(t)

	infra, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = infra.Close(context.Background()) })

	assert.IsType(t, &memory.SubscriptionStore{}, infra.Store)
	assert.IsType(t, &events.LogPublisher{}, infra.Publisher)
	assert.Nil(t, infra.Deduper)
	assert.Empty(t, infra.Checks)
}

func TestNewServices(t *testing.T) {
	cfg := memoryConfig(t)
	infra, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	svcs, err := NewServices(cfg, infra, &mocks.MockPaymentGateway{}, zap.NewNop())
	require.NoError(t, err)

	assert.NotNil(t, svcs.Checkout)
	assert.NotNil(t, svcs.Access)
	assert.NotNil(t, svcs.Cancellation)
	assert.NotNil(t, svcs.Webhook)
	assert.NotNil(t, svcs.Sweeper)
}

func TestNewSecretSource_Env(t *testing.T) {
	src, err := NewSecretSource(context.Background(), memoryConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &secrets.EnvSource{}, src)
}

func TestInfra_CloseReverseOrder(t *testing.T) {
	var order []string
	infra := &Infra{}
	infra.onClose("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	infra.onClose("second", func(context.Context) error {
		order = append(order, "second")
		return errors.New("boom")
	})

	var names []string
	infra.Each(func(name string, _ func(context.Context) error) { names = append(names, name) })
	assert.Equal(t, []string{"first", "second"}, names)

	err := infra.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close second: boom")
	assert.Equal(t, []string{"second", "first"}, order)

	// closers run once
	require.NoError(t, infra.Close(context.Background()))
}
