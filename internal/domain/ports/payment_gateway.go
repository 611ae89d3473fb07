package ports

import (
	"context"

	"github.com/kevin07696/subscription-service/internal/domain"
)

// PaymentIntentRequest is a request to open a payment intent for a plan
type PaymentIntentRequest struct {
	UserID string
	Email  string
	Plan   domain.PlanType
	// IdempotencyKey lets the gateway collapse retries of the same logical request
	IdempotencyKey string
	Amount         int64
}

// PaymentIntent is the gateway's answer to an intent request
type PaymentIntent struct {
	ClientSecret string
	PaymentID    string
}

// Payment intent statuses reported by the gateway
const (
	PaymentIntentSucceeded = "succeeded"
)

// PaymentIntentDetails is the gateway's record of an intent. Metadata fields
// are the ones written by CreatePaymentIntent.
type PaymentIntentDetails struct {
	ID             string
	Status         string
	UserID         string
	Type           string
	Interval       string
	SubscriptionID string
	Amount         int64
}

// PaymentGateway is the outbound port to the payment provider.
//
// Errors are domain errors: GATEWAY_UNAVAILABLE for network failures, 5xx
// responses, timeouts and an open circuit; INVALID_REQUEST for any other
// 4xx, carrying the provider's message.
type PaymentGateway interface {
	// CreatePaymentIntent creates exactly one intent per idempotency key
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error)

	// RetrievePaymentIntent reads an intent; an unknown id is INVALID_REQUEST
	RetrievePaymentIntent(ctx context.Context, paymentID string) (*PaymentIntentDetails, error)

	// CancelAtPeriodEnd disables auto renewal of a gateway-managed subscription
	CancelAtPeriodEnd(ctx context.Context, gatewaySubscriptionID string) error
}
