// Package notify publishes lifecycle events on behalf of the billing services.
package notify

import (
	"context"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/pkg/observability"
)

const publishTimeout = 5 * time.Second

// Notifier publishes events after a transition was stored. Publishing never
// fails the billing operation; errors are logged and counted.
type Notifier struct {
	publisher ports.EventPublisher
	logger    ports.Logger
}

// New creates a notifier; a nil publisher disables publishing
func New(publisher ports.EventPublisher, logger ports.Logger) *Notifier {
	return &Notifier{publisher: publisher, logger: logger}
}

// Emit publishes eventType for acc's current record
func (n *Notifier) Emit(ctx context.Context, eventType ports.EventType, acc *domain.Account, paymentID string, at time.Time) {
	if n == nil || n.publisher == nil || acc == nil {
		return
	}
	event := ports.NewSubscriptionEvent(eventType, acc.UserID(), acc.Current(), paymentID, at)

	// the request may already be finishing; the event should still go out
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := n.publisher.Publish(ctx, event); err != nil {
		observability.RecordEventPublished(string(eventType), "failed")
		n.logger.Error("Failed to publish subscription event",
			ports.String("event_id", event.ID),
			ports.String("event_type", string(eventType)),
			ports.String("user_id", acc.UserID()),
			ports.Err(err),
		)
		return
	}
	observability.RecordEventPublished(string(eventType), "published")
}
