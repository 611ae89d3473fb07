package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/subscription-service/internal/domain"
)

// EventType names a subscription lifecycle event
type EventType string

const (
	EventSubscriptionActivated EventType = "subscription.activated"
	EventSubscriptionRenewed   EventType = "subscription.renewed"
	EventSubscriptionCancelled EventType = "subscription.cancelled"
	EventSubscriptionExpired   EventType = "subscription.expired"
)

// SubscriptionEvent is published after a lifecycle transition is stored
type SubscriptionEvent struct {
	OccurredAt   time.Time                  `json:"occurredAt"`
	Subscription *domain.SubscriptionRecord `json:"subscription"`
	ID           string                     `json:"id"`
	Type         EventType                  `json:"type"`
	UserID       string                     `json:"userId"`
	PaymentID    string                     `json:"paymentId,omitempty"`
}

// EventPublisher fans lifecycle events out to other services
type EventPublisher interface {
	Publish(ctx context.Context, event SubscriptionEvent) error
}

// NewSubscriptionEvent builds an event with a fresh id
func NewSubscriptionEvent(eventType EventType, userID string, record *domain.SubscriptionRecord, paymentID string, at time.Time) SubscriptionEvent {
	return SubscriptionEvent{
		ID:           uuid.NewString(),
		Type:         eventType,
		UserID:       userID,
		Subscription: record,
		PaymentID:    paymentID,
		OccurredAt:   at.UTC(),
	}
}
