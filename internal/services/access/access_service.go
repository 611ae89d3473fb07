// Package access decides at app launch what a user may do, resolving lapsed
// plans on the way.
package access

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

// Service implements serviceports.AccessService
type Service struct {
	store    ports.SubscriptionStore
	notifier *notify.Notifier
	logger   ports.Logger
}

var _ serviceports.AccessService = (*Service)(nil)

// NewService creates a new access service
func NewService(store ports.SubscriptionStore, notifier *notify.Notifier, logger ports.Logger) *Service {
	return &Service{store: store, notifier: notifier, logger: logger}
}

// Account returns the stored aggregate
func (s *Service) Account(ctx context.Context, userID string) (*domain.Account, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.store.Get(ctx, userID)
}

// Evaluate runs the launch-time reconciliation. A lapsed Monthly or Annual
// plan is renewed and a lapsed Trial or Cancelled plan expires, both inside
// one store mutation that re-checks fresh state, so concurrent launches
// renew at most once.
func (s *Service) Evaluate(ctx context.Context, userID string, now time.Time) (*serviceports.AccessDecision, error) {
	now = now.UTC()
	if userID == "" {
		return s.decided(&serviceports.AccessDecision{
			State: serviceports.StateUnauthenticated,
			Route: serviceports.RouteSignIn,
		}), nil
	}

	acc, err := s.store.Get(ctx, userID)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		return s.noPlan(), nil
	}
	if err != nil {
		return nil, err
	}
	cur := acc.Current()
	if cur == nil {
		return s.noPlan(), nil
	}

	renewed := false
	if needsResolution(acc, now) {
		acc, renewed, err = s.resolve(ctx, userID, now)
		if err != nil {
			return nil, err
		}
		cur = acc.Current()
	}

	return s.decided(decide(cur, now, renewed)), nil
}

func needsResolution(acc *domain.Account, now time.Time) bool {
	cur := acc.Current()
	if cur.IsActive() && cur.Type.Renewable() && domain.IsLapsed(cur, now) {
		return true
	}
	return acc.ExpiryDue(now)
}

// resolve renews or expires the account atomically
func (s *Service) resolve(ctx context.Context, userID string, now time.Time) (*domain.Account, bool, error) {
	var renewed, expired bool
	acc, changed, err := s.store.Mutate(ctx, userID, func(acc *domain.Account) (bool, error) {
		renewed, expired = false, false
		ok, err := acc.Renew(now)
		if err != nil {
			return false, err
		}
		if ok {
			renewed = true
			return true, nil
		}
		expired = acc.Expire(now)
		return expired, nil
	})
	if err != nil {
		s.logger.Error("Failed to resolve lapsed subscription",
			ports.String("user_id", userID),
			ports.Err(err),
		)
		return nil, false, err
	}
	if !changed {
		return acc, false, nil
	}

	cur := acc.Current()
	switch {
	case renewed:
		observability.RecordRenewal(string(cur.Type))
		s.logger.Info("Subscription renewed",
			ports.String("user_id", userID),
			ports.String("plan", string(cur.Type)),
			ports.String("payment_id", cur.PaymentID),
			ports.Time("end_date", cur.EndDate),
		)
		s.notifier.Emit(ctx, ports.EventSubscriptionRenewed, acc, cur.PaymentID, now)
	case expired:
		observability.RecordExpiry(string(cur.Type), "launch")
		s.logger.Info("Subscription expired",
			ports.String("user_id", userID),
			ports.String("plan", string(cur.Type)),
			ports.Time("end_date", cur.EndDate),
		)
		s.notifier.Emit(ctx, ports.EventSubscriptionExpired, acc, "", now)
	}
	return acc, renewed, nil
}

func decide(cur *domain.SubscriptionRecord, now time.Time, renewed bool) *serviceports.AccessDecision {
	d := &serviceports.AccessDecision{Subscription: cur, Renewed: renewed}

	lapsedActive := cur.IsActive() && domain.IsLapsed(cur, now)
	if domain.HasAccess(cur, now) && !lapsedActive {
		d.State = serviceports.StateAccessGranted
		d.Route = serviceports.RouteHome
		return d
	}

	d.State = serviceports.StateAccessDenied
	d.Route = serviceports.RoutePlanSelection
	d.Reason = serviceports.ReasonSubscriptionExpired
	if cur.Type == domain.PlanTypeTrial {
		d.Reason = serviceports.ReasonTrialExpired
	}
	return d
}

func (s *Service) noPlan() *serviceports.AccessDecision {
	return s.decided(&serviceports.AccessDecision{
		State: serviceports.StateNoPlan,
		Route: serviceports.RoutePlanSelection,
	})
}

func (s *Service) decided(d *serviceports.AccessDecision) *serviceports.AccessDecision {
	observability.RecordAccessDecision(string(d.State))
	return d
}
