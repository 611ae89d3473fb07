package ports

import (
	"context"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
)

// AccessState is the launch-time state of a user's billing relationship
type AccessState string

const (
	StateUnauthenticated AccessState = "unauthenticated"
	StateNoPlan          AccessState = "no_plan"
	StateNeedsPayment    AccessState = "needs_payment"
	StateAccessGranted   AccessState = "access_granted"
	StateAccessDenied    AccessState = "access_denied"
)

// Route is the screen the app should navigate to for a state
type Route string

const (
	RouteSignIn        Route = "sign_in"
	RoutePlanSelection Route = "plan_selection"
	RoutePayment       Route = "payment"
	RouteHome          Route = "home"
)

// Denial reasons
const (
	ReasonTrialExpired        = "trial_expired"
	ReasonSubscriptionExpired = "subscription_expired"
)

// AccessDecision is the outcome of evaluating a user at app launch
type AccessDecision struct {
	Subscription *domain.SubscriptionRecord `json:"subscription,omitempty"`
	State        AccessState                `json:"state"`
	Route        Route                      `json:"route"`
	Reason       string                     `json:"reason,omitempty"`
	Renewed      bool                       `json:"renewed"`
}

// AccessService decides whether a user may use the app
type AccessService interface {
	// Evaluate resolves lapsed plans (renewal or expiry) before deciding
	Evaluate(ctx context.Context, userID string, now time.Time) (*AccessDecision, error)

	// Account returns the stored aggregate for display
	Account(ctx context.Context, userID string) (*domain.Account, error)
}
