package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
)

// EventPaymentSucceeded is the only event type that changes state
const EventPaymentSucceeded = "payment_intent.succeeded"

// Event is the gateway's webhook envelope
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`
}

// EventData wraps the object the event is about
type EventData struct {
	Object PaymentObject `json:"object"`
}

// PaymentObject is the payment intent carried by a payment event
type PaymentObject struct {
	ID       string          `json:"id"`
	Amount   int64           `json:"amount"`
	Metadata PaymentMetadata `json:"metadata"`
}

// PaymentMetadata is what checkout attached to the intent
type PaymentMetadata struct {
	UserID         string `json:"userId"`
	Type           string `json:"type"`
	Interval       string `json:"interval"`
	SubscriptionID string `json:"subscriptionId"`
}

func parseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("event id and type are required")
	}
	return &ev, nil
}

func (m PaymentMetadata) plan() (domain.PlanType, error) {
	return domain.PlanFromMetadata(m.Type, m.Interval)
}

// activation turns a payment event into the aggregate's input. The period
// starts at the event's creation time, never at a client supplied date.
func (e *Event) activation() (domain.Activation, error) {
	obj := e.Data.Object
	if obj.Metadata.UserID == "" {
		return domain.Activation{}, domain.ErrInvalidRequest.WithDetail("field", "metadata.userId")
	}
	if e.Created <= 0 {
		return domain.Activation{}, domain.ErrInvalidRequest.WithDetail("field", "created")
	}
	plan, err := obj.Metadata.plan()
	if err != nil {
		return domain.Activation{}, err
	}
	act := domain.Activation{
		StartDate:             time.Unix(e.Created, 0).UTC(),
		PaymentID:             obj.ID,
		GatewaySubscriptionID: obj.Metadata.SubscriptionID,
		Plan:                  plan,
		Source:                domain.PaymentSourceWebhook,
		Amount:                obj.Amount,
	}
	return act, act.Validate()
}
