package mocks

import (
	"context"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/stretchr/testify/mock"
)

// MockSubscriptionStore is a testify mock of ports.SubscriptionStore, used
// where a test needs a store failure. Normal flows run on the memory store.
type MockSubscriptionStore struct {
	mock.Mock
}

var _ ports.SubscriptionStore = (*MockSubscriptionStore)(nil)

func (m *MockSubscriptionStore) Get(ctx context.Context, userID string) (*domain.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockSubscriptionStore) Mutate(ctx context.Context, userID string, fn ports.MutateFunc) (*domain.Account, bool, error) {
	args := m.Called(ctx, userID, fn)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Account), args.Bool(1), args.Error(2)
}

func (m *MockSubscriptionStore) ListLapsed(ctx context.Context, now time.Time, limit int) ([]string, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
