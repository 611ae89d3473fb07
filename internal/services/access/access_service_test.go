package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kevin07696/subscription-service/internal/adapters/memory"
	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/internal/services/notify"
	serviceports "github.com/kevin07696/subscription-service/internal/services/ports"
	"github.com/kevin07696/subscription-service/internal/testutil/fixtures"
	"github.com/kevin07696/subscription-service/internal/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	svc       *Service
	store     ports.SubscriptionStore
	publisher *mocks.RecordingPublisher
	logger    *mocks.MockLogger
}

func newTestEnv(t *testing.T, store ports.SubscriptionStore) *testEnv {
	t.Helper()
	if store == nil {
		store = memory.NewSubscriptionStore()
	}
	logger := mocks.NewMockLogger()
	publisher := mocks.NewRecordingPublisher()
	return &testEnv{
		svc:       NewService(store, notify.New(publisher, logger), logger),
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestEvaluate_Decisions(t *testing.T) {
	tests := []struct {
		name       string
		seed       func(t *testing.T, store ports.SubscriptionStore)
		userID     string
		now        time.Time
		wantState  serviceports.AccessState
		wantRoute  serviceports.Route
		wantReason string
	}{
		{
			name:      "signed out",
			userID:    "",
			now:       at(2024, time.January, 20),
			wantState: serviceports.StateUnauthenticated,
			wantRoute: serviceports.RouteSignIn,
		},
		{
			name:      "no record",
			userID:    "user-1",
			now:       at(2024, time.January, 20),
			wantState: serviceports.StateNoPlan,
			wantRoute: serviceports.RoutePlanSelection,
		},
		{
			name: "active within period",
			seed: func(t *testing.T, store ports.SubscriptionStore) {
				fixtures.Seed(t, store, "user-1", fixtures.NewActivation().Build())
			},
			userID:    "user-1",
			now:       at(2024, time.February, 1),
			wantState: serviceports.StateAccessGranted,
			wantRoute: serviceports.RouteHome,
		},
		{
			name: "cancelled in grace period",
			seed: func(t *testing.T, store ports.SubscriptionStore) {
				fixtures.SeedCancelled(t, store, "user-1", fixtures.NewActivation().Build())
			},
			userID:    "user-1",
			now:       at(2024, time.February, 10),
			wantState: serviceports.StateAccessGranted,
			wantRoute: serviceports.RouteHome,
		},
		{
			name: "cancelled and lapsed",
			seed: func(t *testing.T, store ports.SubscriptionStore) {
				fixtures.SeedCancelled(t, store, "user-1", fixtures.NewActivation().Build())
			},
			userID:     "user-1",
			now:        at(2024, time.February, 20),
			wantState:  serviceports.StateAccessDenied,
			wantRoute:  serviceports.RoutePlanSelection,
			wantReason: serviceports.ReasonSubscriptionExpired,
		},
		{
			name: "trial lapsed",
			seed: func(t *testing.T, store ports.SubscriptionStore) {
				fixtures.Seed(t, store, "user-1", fixtures.NewActivation().
					WithPlan(domain.PlanTypeTrial).WithAmount(50).Build())
			},
			userID:     "user-1",
			now:        at(2024, time.February, 20),
			wantState:  serviceports.StateAccessDenied,
			wantRoute:  serviceports.RoutePlanSelection,
			wantReason: serviceports.ReasonTrialExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			if tt.seed != nil {
				tt.seed(t, env.store)
			}

			d, err := env.svc.Evaluate(context.Background(), tt.userID, tt.now)

			require.NoError(t, err)
			assert.Equal(t, tt.wantState, d.State)
			assert.Equal(t, tt.wantRoute, d.Route)
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.False(t, d.Renewed)
		})
	}
}

func TestEvaluate_RenewsLapsedMonthly(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// client confirmation, then the webhook for the same payment
	fixtures.Seed(t, env.store, "user-1", fixtures.NewActivation().Build())
	fixtures.Seed(t, env.store, "user-1", fixtures.NewActivation().
		WithSource(domain.PaymentSourceWebhook).Build())

	now := at(2024, time.February, 20)
	d, err := env.svc.Evaluate(ctx, "user-1", now)

	require.NoError(t, err)
	assert.Equal(t, serviceports.StateAccessGranted, d.State)
	assert.Equal(t, serviceports.RouteHome, d.Route)
	assert.True(t, d.Renewed)
	require.NotNil(t, d.Subscription)
	assert.Equal(t, now, d.Subscription.StartDate)
	assert.Equal(t, at(2024, time.March, 20), d.Subscription.EndDate)
	assert.Equal(t, domain.RenewalPaymentID(now), d.Subscription.PaymentID)
	assert.True(t, d.Subscription.AutoRenew)

	acc, err := env.svc.Account(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, acc.History(), 1)
	assert.Equal(t, "pi_123", acc.History()[0].PaymentID)
	require.Len(t, acc.Payments(), 2)
	assert.Equal(t, domain.PaymentStatusSimulated, acc.Payments()[1].Status)
	assert.Equal(t, domain.PaymentSourceRenewal, acc.Payments()[1].Source)
	assert.Equal(t, int64(999), acc.Payments()[1].Amount)

	assert.Equal(t, []ports.EventType{ports.EventSubscriptionRenewed}, env.publisher.Types())
}

func TestEvaluate_RenewalHappensOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	fixtures.Seed(t, env.store, "user-1", fixtures.NewActivation().
		WithPlan(domain.PlanTypeAnnual).WithAmount(9999).Build())

	now := at(2025, time.February, 1)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := env.svc.Evaluate(ctx, "user-1", now)
			assert.NoError(t, err)
			assert.Equal(t, serviceports.StateAccessGranted, d.State)
		}()
	}
	wg.Wait()

	acc, err := env.svc.Account(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, acc.Payments(), 2)
	assert.Len(t, acc.History(), 1)
	assert.Equal(t, at(2026, time.February, 1), acc.Current().EndDate)
	assert.Len(t, env.publisher.Types(), 1)
}

func TestEvaluate_ExpiresLapsedTrial(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	fixtures.Seed(t, env.store, "user-1", fixtures.NewActivation().
		WithPlan(domain.PlanTypeTrial).WithAmount(50).Build())

	d, err := env.svc.Evaluate(ctx, "user-1", at(2024, time.January, 25))
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusExpired, d.Subscription.Status)
	assert.Equal(t, []ports.EventType{ports.EventSubscriptionExpired}, env.publisher.Types())

	// a second launch finds nothing to resolve
	d, err = env.svc.Evaluate(ctx, "user-1", at(2024, time.January, 26))
	require.NoError(t, err)
	assert.Equal(t, serviceports.StateAccessDenied, d.State)
	assert.Len(t, env.publisher.Types(), 1)

	acc, err := env.svc.Account(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, acc.History(), 1)
	assert.Len(t, acc.Payments(), 1)
}

func TestEvaluate_StoreErrors(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("get fails", func(t *testing.T) {
		store := new(mocks.MockSubscriptionStore)
		store.On("Get", mock.Anything, "user-1").Return(nil, boom)
		env := newTestEnv(t, store)

		d, err := env.svc.Evaluate(context.Background(), "user-1", at(2024, time.February, 1))

		assert.Nil(t, d)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("renewal write fails", func(t *testing.T) {
		acc := domain.NewAccount("user-1")
		_, err := acc.ApplyPayment(fixtures.NewActivation().Build())
		require.NoError(t, err)

		store := new(mocks.MockSubscriptionStore)
		store.On("Get", mock.Anything, "user-1").Return(acc, nil)
		store.On("Mutate", mock.Anything, "user-1", mock.Anything).Return(nil, false, domain.ErrDatabaseError)
		env := newTestEnv(t, store)

		d, err := env.svc.Evaluate(context.Background(), "user-1", at(2024, time.February, 20))

		assert.Nil(t, d)
		assert.ErrorIs(t, err, domain.ErrDatabaseError)
		require.Len(t, env.logger.ErrorCalls(), 1)
		assert.Empty(t, env.publisher.Types())
	})
}

func TestAccount(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.svc.Account(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = env.svc.Account(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)

	fixtures.Seed(t, env.store, "user-1", fixtures.NewActivation().Build())
	acc, err := env.svc.Account(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "pi_123", acc.Current().PaymentID)
}
