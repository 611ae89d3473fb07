// Package webhook is the gateway's authoritative writer of subscription
// state. Events are authenticated before their payload is trusted and are
// applied through the same idempotent upsert the client uses.
package webhook

import (
	"context"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/internal/services/notify"
	serviceports "github.com/kevin07696/subscription-service/internal/services/ports"
	"github.com/kevin07696/subscription-service/pkg/observability"
)

// Config holds the webhook verification settings
type Config struct {
	Secret    string
	Tolerance time.Duration
}

// Service implements serviceports.WebhookService
type Service struct {
	store    ports.SubscriptionStore
	deduper  ports.EventDeduper
	notifier *notify.Notifier
	cfg      Config
	logger   ports.Logger
}

var _ serviceports.WebhookService = (*Service)(nil)

// NewService creates a webhook service. deduper may be nil; the payment
// ledger alone still guarantees idempotency.
func NewService(
	store ports.SubscriptionStore,
	deduper ports.EventDeduper,
	notifier *notify.Notifier,
	cfg Config,
	logger ports.Logger,
) *Service {
	return &Service{
		store:    store,
		deduper:  deduper,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// HandleEvent verifies and applies one webhook delivery
func (s *Service) HandleEvent(ctx context.Context, payload []byte, signatureHeader string, now time.Time) (*serviceports.WebhookResult, error) {
	if err := VerifySignature(payload, signatureHeader, s.cfg.Secret, now, s.cfg.Tolerance); err != nil {
		observability.RecordWebhookEvent("unknown", "invalid_signature")
		s.logger.Warn("Rejected webhook with invalid signature", ports.Err(err))
		return nil, err
	}

	ev, err := parseEvent(payload)
	if err != nil {
		s.logger.Error("Authentic webhook has an unreadable payload", ports.Err(err))
		return s.finish(&serviceports.WebhookResult{Outcome: serviceports.WebhookRejected}), nil
	}
	result := &serviceports.WebhookResult{
		EventID:   ev.ID,
		EventType: ev.Type,
		UserID:    ev.Data.Object.Metadata.UserID,
	}

	if s.alreadyProcessed(ctx, ev.ID) {
		result.Outcome = serviceports.WebhookDuplicate
		return s.finish(result), nil
	}

	if ev.Type != EventPaymentSucceeded {
		s.logger.Debug("Ignoring webhook event",
			ports.String("event_id", ev.ID),
			ports.String("event_type", ev.Type),
		)
		result.Outcome = serviceports.WebhookIgnored
		return s.finish(result), nil
	}

	act, err := ev.activation()
	if err != nil {
		s.reject(ev, err)
		result.Outcome = serviceports.WebhookRejected
		return s.finish(result), nil
	}

	acc, applied, err := s.store.Mutate(ctx, result.UserID, func(acc *domain.Account) (bool, error) {
		return acc.ApplyPayment(act)
	})
	if err != nil {
		if isPayloadError(err) {
			s.reject(ev, err)
			result.Outcome = serviceports.WebhookRejected
			return s.finish(result), nil
		}
		observability.RecordPaymentActivation(string(act.Source), string(act.Plan), "failed", act.Amount)
		s.logger.Error("Failed to apply webhook payment",
			ports.String("event_id", ev.ID),
			ports.String("user_id", result.UserID),
			ports.String("payment_id", act.PaymentID),
			ports.Err(err),
		)
		observability.RecordWebhookEvent(ev.Type, "failed")
		return nil, err
	}

	if applied {
		observability.RecordPaymentActivation(string(act.Source), string(act.Plan), "applied", act.Amount)
		s.logger.Info("Webhook payment applied",
			ports.String("event_id", ev.ID),
			ports.String("user_id", result.UserID),
			ports.String("payment_id", act.PaymentID),
			ports.String("plan", string(act.Plan)),
		)
		s.notifier.Emit(ctx, ports.EventSubscriptionActivated, acc, act.PaymentID, now)
		result.Outcome = serviceports.WebhookProcessed
	} else {
		observability.RecordPaymentActivation(string(act.Source), string(act.Plan), "duplicate", act.Amount)
		result.Outcome = serviceports.WebhookDuplicate
	}

	s.markProcessed(ctx, ev.ID)
	return s.finish(result), nil
}

// alreadyProcessed consults the dedup cache. A cache failure is not fatal;
// the ledger check inside ApplyPayment still holds.
func (s *Service) alreadyProcessed(ctx context.Context, eventID string) bool {
	if s.deduper == nil {
		return false
	}
	seen, err := s.deduper.Seen(ctx, eventID)
	if err != nil {
		s.logger.Warn("Webhook dedup lookup failed",
			ports.String("event_id", eventID),
			ports.Err(err),
		)
		return false
	}
	return seen
}

func (s *Service) markProcessed(ctx context.Context, eventID string) {
	if s.deduper == nil {
		return
	}
	if err := s.deduper.MarkProcessed(ctx, eventID); err != nil {
		s.logger.Warn("Failed to record processed webhook event",
			ports.String("event_id", eventID),
			ports.Err(err),
		)
	}
}

func (s *Service) reject(ev *Event, err error) {
	s.logger.Error("Rejected authentic webhook event",
		ports.String("event_id", ev.ID),
		ports.String("event_type", ev.Type),
		ports.String("user_id", ev.Data.Object.Metadata.UserID),
		ports.String("payment_id", ev.Data.Object.ID),
		ports.Err(err),
	)
}

func (s *Service) finish(result *serviceports.WebhookResult) *serviceports.WebhookResult {
	eventType := result.EventType
	if eventType == "" {
		eventType = "unknown"
	}
	observability.RecordWebhookEvent(eventType, string(result.Outcome))
	return result
}

func isPayloadError(err error) bool {
	switch domain.GetErrorCode(err) {
	case domain.ErrorCodeInvalidRequest, domain.ErrorCodeInvalidPlanType:
		return true
	}
	return false
}
