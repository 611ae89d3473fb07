package cancellation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kevin07696/subscription-service/internal/adapters/memory"
	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/internal/services/notify"
	"github.com/kevin07696/subscription-service/internal/testutil/fixtures"
	"github.com/kevin07696/subscription-service/internal/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var feb1 = time.Date(2024, time.February, 1, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	svc       *Service
	store     *memory.SubscriptionStore
	gateway   *mocks.MockPaymentGateway
	publisher *mocks.RecordingPublisher
	logger    *mocks.MockLogger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewSubscriptionStore()
	gateway := new(mocks.MockPaymentGateway)
	logger := mocks.NewMockLogger()
	publisher := mocks.NewRecordingPublisher()
	return &testEnv{
		svc:       NewService(store, gateway, notify.New(publisher, logger), logger),
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
	}
}

func TestCancel_KeepsAccessUntilEndDate(t *testing.T) {
	env := newTestEnv(t)
	fixtures.Seed(t, env.store, "user-1", fixtures.NewActivation().Build())

	res, err := env.svc.Cancel(context.Background(), "user-1", feb1)

	require.NoError(t, err)
	assert.False(t, res.AlreadyCancelled)
	assert.Equal(t, domain.SubscriptionStatusCancelled, res.Subscription.Status)
	assert.False(t, res.Subscription.AutoRenew)
	assert.Equal(t, fixtures.Date(2024, time.February, 15), res.Subscription.EndDate)

	acc, err := env.store.Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, acc.History(), 1)
	assert.Equal(t, domain.SubscriptionStatusActive, acc.History()[0].Status)
	assert.True(t, domain.HasAccess(acc.Current(), fixtures.Date(2024, time.February, 14)))
	assert.Equal(t, []ports.EventType{ports.EventSubscriptionCancelled}, env.publisher.Types())
	env.gateway.AssertNotCalled(t, "CancelAtPeriodEnd", mock.Anything, mock.Anything)
}

func TestCancel_Twice(t *testing.T) {
	env := newTestEnv(t)
	fixtures.Seed(t, env.store, "user-1", fixtures.NewActivation().Build())

	_, err := env.svc.Cancel(context.Background(), "user-1", feb1)
	require.NoError(t, err)
	res, err := env.svc.Cancel(context.Background(), "user-1", feb1)

	require.NoError(t, err)
	assert.True(t, res.AlreadyCancelled)
	acc, err := env.store.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, acc.History(), 1)
	assert.Len(t, env.publisher.Types(), 1)
}

func TestCancel_Errors(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		seed    func(t *testing.T, store ports.SubscriptionStore)
		wantErr error
	}{
		{
			name:    "missing user id",
			userID:  "",
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:    "no subscription",
			userID:  "user-1",
			wantErr: domain.ErrSubscriptionNotFound,
		},
		{
			name:   "expired",
			userID: "user-1",
			seed: func(t *testing.T, store ports.SubscriptionStore) {
				fixtures.Seed(t, store, "user-1", fixtures.NewActivation().WithPlan(domain.PlanTypeTrial).WithAmount(50).Build())
				_, _, err := store.Mutate(context.Background(), "user-1", func(acc *domain.Account) (bool, error) {
					return acc.Expire(fixtures.Date(2024, time.January, 20)), nil
				})
				require.NoError(t, err)
			},
			wantErr: domain.ErrNoActiveSubscription,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.seed != nil {
				tt.seed(t, env.store)
			}

			res, err := env.svc.Cancel(context.Background(), tt.userID, feb1)

			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, env.publisher.Types())
		})
	}
}

func TestCancel_GatewayManagedPlan(t *testing.T) {
	act := fixtures.NewActivation().WithGatewaySubscription("sub_42").Build()

	t.Run("cancels at the gateway first", func(t *testing.T) {
		env := newTestEnv(t)
		fixtures.Seed(t, env.store, "user-1", act)
		env.gateway.On("CancelAtPeriodEnd", mock.Anything, "sub_42").Return(nil)

		res, err := env.svc.Cancel(context.Background(), "user-1", feb1)

		require.NoError(t, err)
		assert.Equal(t, domain.SubscriptionStatusCancelled, res.Subscription.Status)
		env.gateway.AssertExpectations(t)
	})

	t.Run("gateway failure leaves state untouched", func(t *testing.T) {
		env := newTestEnv(t)
		fixtures.Seed(t, env.store, "user-1", act)
		env.gateway.On("CancelAtPeriodEnd", mock.Anything, "sub_42").Return(domain.ErrGatewayUnavailable)

		res, err := env.svc.Cancel(context.Background(), "user-1", feb1)

		assert.Nil(t, res)
		assert.ErrorIs(t, err, domain.ErrCancellationFailed)
		assert.False(t, domain.IsRetryable(err))
		var derr *domain.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "gateway", derr.Details["stage"])
		assert.Equal(t, string(domain.ErrorCodeGatewayUnavailable), derr.Details["cause"])
		acc, err := env.store.Get(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, domain.SubscriptionStatusActive, acc.Current().Status)
		assert.Empty(t, acc.History())
		assert.Len(t, env.logger.ErrorCalls(), 1)
	})
}

func TestCancel_StoreFailure(t *testing.T) {
	seeded := memory.NewSubscriptionStore()
	acc := fixtures.Seed(t, seeded, "user-1", fixtures.NewActivation().Build())

	store := &mocks.MockSubscriptionStore{}
	store.On("Get", mock.Anything, "user-1").Return(acc, nil)
	store.On("Mutate", mock.Anything, "user-1", mock.Anything).
		Return(nil, false, domain.WrapError(domain.ErrorCodeDatabaseError, "update current record", errors.New("connection reset")))
	logger := mocks.NewMockLogger()
	publisher := mocks.NewRecordingPublisher()
	svc := NewService(store, new(mocks.MockPaymentGateway), notify.New(publisher, logger), logger)

	res, err := svc.Cancel(context.Background(), "user-1", feb1)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrCancellationFailed)
	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "store", derr.Details["stage"])
	assert.NotContains(t, derr.Details, "reason")
	assert.Empty(t, publisher.Types())
	assert.Len(t, logger.ErrorCalls(), 1)
}

func TestCancel_LapsedPlan(t *testing.T) {
	mar1 := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		act        domain.Activation
		wantEnd    time.Time
		wantEvents []ports.EventType
		wantAccess bool
	}{
		{
			name:       "monthly renews then cancels",
			act:        fixtures.NewActivation().Build(),
			wantEnd:    time.Date(2024, time.April, 1, 8, 0, 0, 0, time.UTC),
			wantEvents: []ports.EventType{ports.EventSubscriptionRenewed, ports.EventSubscriptionCancelled},
			wantAccess: true,
		},
		{
			name:       "annual renews then cancels",
			act:        fixtures.NewActivation().WithPlan(domain.PlanTypeAnnual).WithAmount(9999).WithStart(fixtures.Date(2023, time.January, 15)).Build(),
			wantEnd:    time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC),
			wantEvents: []ports.EventType{ports.EventSubscriptionRenewed, ports.EventSubscriptionCancelled},
			wantAccess: true,
		},
		{
			name:       "trial is not renewed",
			act:        fixtures.NewActivation().WithPlan(domain.PlanTypeTrial).WithAmount(50).Build(),
			wantEnd:    fixtures.Date(2024, time.January, 17),
			wantEvents: []ports.EventType{ports.EventSubscriptionCancelled},
			wantAccess: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			fixtures.Seed(t, env.store, "user-1", tt.act)

			res, err := env.svc.Cancel(context.Background(), "user-1", mar1)

			require.NoError(t, err)
			assert.Equal(t, domain.SubscriptionStatusCancelled, res.Subscription.Status)
			assert.False(t, res.Subscription.AutoRenew)
			assert.Equal(t, tt.wantEnd, res.Subscription.EndDate)
			assert.Equal(t, tt.wantAccess, domain.HasAccess(res.Subscription, mar1.Add(time.Hour)))
			assert.Equal(t, tt.wantEvents, env.publisher.Types())
		})
	}
}
