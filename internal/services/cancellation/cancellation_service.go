// Package cancellation stops auto renewal while keeping access until the
// current period ends.
package cancellation

import (
	"context"
	"errors"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/internal/services/notify"
	serviceports "github.com/kevin07696/subscription-service/internal/services/ports"
	"github.com/kevin07696/subscription-service/pkg/observability"
)

// Service implements serviceports.CancellationService
type Service struct {
	store    ports.SubscriptionStore
	gateway  ports.PaymentGateway
	notifier *notify.Notifier
	logger   ports.Logger
}

var _ serviceports.CancellationService = (*Service)(nil)

// NewService creates a new cancellation service
func NewService(store ports.SubscriptionStore, gateway ports.PaymentGateway, notifier *notify.Notifier, logger ports.Logger) *Service {
	return &Service{store: store, gateway: gateway, notifier: notifier, logger: logger}
}

// Cancel marks the current plan Cancelled. A plan the gateway bills is
// cancelled there first; if that fails nothing changes locally. Gateway and
// store failures are reported as CANCELLATION_FAILED.
//
// A lapsed Monthly or Annual plan is renewed in the same update before it is
// cancelled, so the user keeps the period the renewal would have granted.
func (s *Service) Cancel(ctx context.Context, userID string, now time.Time) (*serviceports.CancelResult, error) {
	if userID == "" {
		return nil, domain.ErrInvalidRequest.WithDetail("field", "userId")
	}

	acc, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	cur := acc.Current()
	switch {
	case cur == nil:
		observability.RecordCancellation("rejected")
		return nil, domain.ErrSubscriptionNotFound
	case cur.IsCancelled():
		observability.RecordCancellation("already_cancelled")
		return &serviceports.CancelResult{Subscription: cur, AlreadyCancelled: true}, nil
	case !cur.IsActive():
		observability.RecordCancellation("rejected")
		return nil, domain.ErrNoActiveSubscription
	}

	if cur.GatewayManaged() {
		if err := s.gateway.CancelAtPeriodEnd(ctx, cur.GatewaySubscriptionID); err != nil {
			observability.RecordCancellation("gateway_failed")
			s.logger.Error("Gateway refused to cancel subscription",
				ports.String("user_id", userID),
				ports.String("gateway_subscription_id", cur.GatewaySubscriptionID),
				ports.Err(err),
			)
			return nil, cancellationFailed("gateway", err)
		}
	}

	var renewed bool
	updated, changed, err := s.store.Mutate(ctx, userID, func(acc *domain.Account) (bool, error) {
		var err error
		if renewed, err = acc.Renew(now); err != nil {
			return false, err
		}
		cancelled, err := acc.Cancel()
		return renewed || cancelled, err
	})
	if errors.Is(err, domain.ErrNoActiveSubscription) || errors.Is(err, domain.ErrSubscriptionNotFound) {
		// expired or removed since it was read
		observability.RecordCancellation("rejected")
		return nil, err
	}
	if err != nil {
		observability.RecordCancellation("store_failed")
		s.logger.Error("Failed to cancel subscription",
			ports.String("user_id", userID),
			ports.Err(err),
		)
		return nil, cancellationFailed("store", err)
	}

	rec := updated.Current()
	if renewed {
		observability.RecordRenewal(string(rec.Type))
		s.logger.Info("Subscription renewed before cancellation",
			ports.String("user_id", userID),
			ports.String("plan", string(rec.Type)),
			ports.String("payment_id", rec.PaymentID),
		)
		s.notifier.Emit(ctx, ports.EventSubscriptionRenewed, updated, rec.PaymentID, now)
	}
	if !changed {
		// a concurrent request won
		observability.RecordCancellation("already_cancelled")
		return &serviceports.CancelResult{Subscription: rec, AlreadyCancelled: true}, nil
	}

	observability.RecordCancellation("cancelled")
	s.logger.Info("Subscription cancelled",
		ports.String("user_id", userID),
		ports.String("plan", string(rec.Type)),
		ports.Time("end_date", rec.EndDate),
	)
	s.notifier.Emit(ctx, ports.EventSubscriptionCancelled, updated, "", now)
	return &serviceports.CancelResult{Subscription: rec}, nil
}

// cancellationFailed wraps err; the gateway's own message is kept for the
// client, store internals are not
func cancellationFailed(stage string, err error) error {
	derr := domain.WrapError(domain.ErrorCodeCancellationFailed, "subscription cancellation failed", err).
		WithDetail("stage", stage)
	if code := domain.GetErrorCode(err); code != "" {
		derr = derr.WithDetail("cause", string(code))
	}
	var inner *domain.DomainError
	if stage == "gateway" && errors.As(err, &inner) {
		derr = derr.WithDetail("reason", inner.Message)
	}
	return derr
}
