package mocks

import (
	"context"

	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/stretchr/testify/mock"
)

// MockPaymentGateway is a testify mock of ports.PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

var _ ports.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) CreatePaymentIntent(ctx context.Context, req ports.PaymentIntentRequest) (*ports.PaymentIntent, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentIntent), args.Error(1)
}

func (m *MockPaymentGateway) RetrievePaymentIntent(ctx context.Context, paymentID string) (*ports.PaymentIntentDetails, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentIntentDetails), args.Error(1)
}

func (m *MockPaymentGateway) CancelAtPeriodEnd(ctx context.Context, gatewaySubscriptionID string) error {
	args := m.Called(ctx, gatewaySubscriptionID)
	return args.Error(0)
}
