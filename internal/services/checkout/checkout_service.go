package checkout

import (
	"context"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/internal/services/notify"
	serviceports "github.com/kevin07696/subscription-service/internal/services/ports"
	"github.com/kevin07696/subscription-service/pkg/observability"
)

// Service implements serviceports.CheckoutService
type Service struct {
	store    ports.SubscriptionStore
	gateway  ports.PaymentGateway
	catalog  *domain.Catalog
	notifier *notify.Notifier
	logger   ports.Logger
}

var _ serviceports.CheckoutService = (*Service)(nil)

// NewService creates a new checkout service
func NewService(
	store ports.SubscriptionStore,
	gateway ports.PaymentGateway,
	catalog *domain.Catalog,
	notifier *notify.Notifier,
	logger ports.Logger,
) *Service {
	return &Service{
		store:    store,
		gateway:  gateway,
		catalog:  catalog,
		notifier: notifier,
		logger:   logger,
	}
}

// Begin opens a payment intent for the selected plan. The amount the client
// shows must match the catalog price.
func (s *Service) Begin(ctx context.Context, req serviceports.BeginCheckoutRequest, now time.Time) (*serviceports.CheckoutSession, error) {
	if req.UserID == "" {
		return nil, domain.ErrInvalidRequest.WithDetail("field", "userId")
	}
	plan, err := domain.PlanFromInterval(req.IsTrial, req.Interval)
	if err != nil {
		return nil, err
	}
	price, err := s.catalog.Price(plan)
	if err != nil {
		return nil, err
	}
	if req.Amount != price {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidRequest, "amount does not match plan price").
			WithDetail("expected", price).
			WithDetail("amount", req.Amount)
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, ports.PaymentIntentRequest{
		UserID:         req.UserID,
		Email:          req.Email,
		Plan:           plan,
		Amount:         price,
		IdempotencyKey: domain.IdempotencyKey(req.UserID, plan, now),
	})
	if err != nil {
		return nil, err
	}

	return &serviceports.CheckoutSession{
		ClientSecret: intent.ClientSecret,
		PaymentID:    intent.PaymentID,
		Plan:         plan,
		State:        serviceports.StateNeedsPayment,
		Route:        serviceports.RoutePayment,
	}, nil
}

// Confirm records a payment the client saw succeed. The intent is read back
// from the gateway first; a payment that did not succeed or that belongs to
// another user or plan is rejected without touching the store.
//
// It is never retried here: a store failure after a successful charge
// surfaces as ActivationFailed so support can reconcile it, and the webhook
// will usually apply it anyway.
func (s *Service) Confirm(ctx context.Context, req serviceports.ConfirmPaymentRequest, now time.Time) (*serviceports.ConfirmResult, error) {
	switch req.Outcome {
	case serviceports.PaymentOutcomeCancelled:
		s.logger.Info("Payment sheet dismissed",
			ports.String("user_id", req.UserID),
			ports.String("payment_id", req.PaymentID),
		)
		return &serviceports.ConfirmResult{Dismissed: true}, nil
	case serviceports.PaymentOutcomeSucceeded:
	default:
		return nil, domain.ErrInvalidRequest.WithDetail("field", "outcome")
	}

	if req.UserID == "" {
		return nil, domain.ErrInvalidRequest.WithDetail("field", "userId")
	}
	price, err := s.catalog.Price(req.Plan)
	if err != nil {
		return nil, err
	}
	act := domain.Activation{
		PaymentID: req.PaymentID,
		Plan:      req.Plan,
		Amount:    price,
		StartDate: now,
		Source:    domain.PaymentSourceClient,
	}
	if err := act.Validate(); err != nil {
		return nil, err
	}

	intent, err := s.gateway.RetrievePaymentIntent(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if err := verifyIntent(req, intent); err != nil {
		s.logger.Warn("Payment confirmation rejected",
			ports.String("user_id", req.UserID),
			ports.String("payment_id", req.PaymentID),
			ports.String("plan", string(req.Plan)),
			ports.Err(err),
		)
		return nil, err
	}
	if intent.Amount > 0 {
		act.Amount = intent.Amount
	}
	act.GatewaySubscriptionID = intent.SubscriptionID

	acc, applied, err := s.store.Mutate(ctx, req.UserID, func(acc *domain.Account) (bool, error) {
		return acc.ApplyPayment(act)
	})
	if err != nil {
		observability.RecordPaymentActivation(string(domain.PaymentSourceClient), string(req.Plan), "failed", price)
		s.logger.Error("Payment succeeded but activation failed",
			ports.String("user_id", req.UserID),
			ports.String("payment_id", req.PaymentID),
			ports.String("plan", string(req.Plan)),
			ports.Err(err),
		)
		return nil, domain.WrapError(domain.ErrorCodeActivationFailed, "payment succeeded but activation failed", err).
			WithDetail("paymentId", req.PaymentID)
	}

	if !applied {
		observability.RecordPaymentActivation(string(domain.PaymentSourceClient), string(req.Plan), "duplicate", price)
		s.logger.Info("Payment already recorded",
			ports.String("user_id", req.UserID),
			ports.String("payment_id", req.PaymentID),
		)
		return &serviceports.ConfirmResult{Subscription: acc.Current()}, nil
	}

	observability.RecordPaymentActivation(string(domain.PaymentSourceClient), string(req.Plan), "applied", price)
	s.logger.Info("Subscription activated",
		ports.String("user_id", req.UserID),
		ports.String("payment_id", req.PaymentID),
		ports.String("plan", string(req.Plan)),
		ports.String("source", string(domain.PaymentSourceClient)),
	)
	s.notifier.Emit(ctx, ports.EventSubscriptionActivated, acc, req.PaymentID, now)

	return &serviceports.ConfirmResult{Subscription: acc.Current(), Applied: true}, nil
}

// verifyIntent checks the gateway's record against what the client claims
func verifyIntent(req serviceports.ConfirmPaymentRequest, intent *ports.PaymentIntentDetails) error {
	reject := func(reason string) error {
		return domain.NewDomainError(domain.ErrorCodeInvalidRequest, "payment cannot be confirmed").
			WithDetail("paymentId", req.PaymentID).
			WithDetail("reason", reason)
	}

	if intent.Status != ports.PaymentIntentSucceeded {
		return reject("payment_not_succeeded")
	}
	if intent.UserID != req.UserID {
		return reject("user_mismatch")
	}
	plan, err := domain.PlanFromMetadata(intent.Type, intent.Interval)
	if err != nil || plan != req.Plan {
		return reject("plan_mismatch")
	}
	return nil
}
