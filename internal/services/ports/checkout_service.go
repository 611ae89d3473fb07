package ports

import (
	"context"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
)

// BeginCheckoutRequest asks for a payment intent for the selected plan
type BeginCheckoutRequest struct {
	UserID   string
	Email    string
	Interval string
	Amount   int64
	IsTrial  bool
}

// CheckoutSession is what the client needs to present the payment sheet
type CheckoutSession struct {
	ClientSecret string
	PaymentID    string
	Plan         domain.PlanType
	State        AccessState
	Route        Route
}

// PaymentOutcome is how the payment sheet closed on the client
type PaymentOutcome string

const (
	PaymentOutcomeSucceeded PaymentOutcome = "succeeded"
	// PaymentOutcomeCancelled means the user dismissed the sheet; not an error
	PaymentOutcomeCancelled PaymentOutcome = "cancelled"
)

// ConfirmPaymentRequest reports the client-side result of a payment
type ConfirmPaymentRequest struct {
	UserID    string
	PaymentID string
	Plan      domain.PlanType
	Outcome   PaymentOutcome
}

// ConfirmResult describes what the confirmation did
type ConfirmResult struct {
	Subscription *domain.SubscriptionRecord
	// Dismissed is set for a user-cancelled payment sheet
	Dismissed bool
	// Applied is false when the payment was already recorded, e.g. by the webhook
	Applied bool
}

// CheckoutService is the client's optimistic writer
type CheckoutService interface {
	Begin(ctx context.Context, req BeginCheckoutRequest, now time.Time) (*CheckoutSession, error)
	Confirm(ctx context.Context, req ConfirmPaymentRequest, now time.Time) (*ConfirmResult, error)
}
