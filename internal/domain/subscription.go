package domain

import (
	"fmt"
	"time"
)

// SubscriptionStatus represents the subscription state
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// ParseSubscriptionStatus parses a stored status value
func ParseSubscriptionStatus(s string) (SubscriptionStatus, error) {
	switch st := SubscriptionStatus(s); st {
	case SubscriptionStatusActive, SubscriptionStatusCancelled, SubscriptionStatusExpired:
		return st, nil
	}
	return "", fmt.Errorf("unknown subscription status %q", s)
}

// SubscriptionRecord is the current state of a user's plan
type SubscriptionRecord struct {
	StartDate             time.Time          `json:"startDate" bson:"startDate"`
	EndDate               time.Time          `json:"endDate" bson:"endDate"`
	Type                  PlanType           `json:"type" bson:"type"`
	Status                SubscriptionStatus `json:"status" bson:"status"`
	PaymentID             string             `json:"paymentId" bson:"paymentId"`
	GatewaySubscriptionID string             `json:"gatewaySubscriptionId,omitempty" bson:"gatewaySubscriptionId,omitempty"`
	Amount                int64              `json:"amount" bson:"amount"`
	AutoRenew             bool               `json:"autoRenew" bson:"autoRenew"`
}

// IsActive returns true if the subscription is currently active
func (r *SubscriptionRecord) IsActive() bool {
	return r.Status == SubscriptionStatusActive
}

// IsCancelled returns true if the subscription has been cancelled
func (r *SubscriptionRecord) IsCancelled() bool {
	return r.Status == SubscriptionStatusCancelled
}

// IsExpired returns true once the subscription has lapsed for good
func (r *SubscriptionRecord) IsExpired() bool {
	return r.Status == SubscriptionStatusExpired
}

// GatewayManaged reports whether renewal is controlled by a gateway-side subscription
func (r *SubscriptionRecord) GatewayManaged() bool {
	return r.GatewaySubscriptionID != ""
}

// PaymentStatus is the outcome recorded for a ledger entry
type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusSimulated PaymentStatus = "simulated"
)

// PaymentSource identifies which writer appended a ledger entry
type PaymentSource string

const (
	PaymentSourceClient  PaymentSource = "client"
	PaymentSourceWebhook PaymentSource = "webhook"
	PaymentSourceRenewal PaymentSource = "renewal"
)

// PaymentRecord is one entry of a user's payment ledger. ID equals the
// gateway payment identifier, which makes duplicate writes detectable.
type PaymentRecord struct {
	Date   time.Time     `json:"date" bson:"date"`
	ID     string        `json:"id" bson:"id"`
	Type   PlanType      `json:"type" bson:"type"`
	Status PaymentStatus `json:"status" bson:"status"`
	Source PaymentSource `json:"source" bson:"source"`
	Amount int64         `json:"amount" bson:"amount"`
}

// RenewalPaymentIDPrefix prefixes ledger ids of simulated renewals
const RenewalPaymentIDPrefix = "renewal_"

// RenewalPaymentID returns the synthetic ledger id for a renewal at t
func RenewalPaymentID(t time.Time) string {
	return RenewalPaymentIDPrefix + t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Activation describes a confirmed payment that should become the current plan
type Activation struct {
	StartDate             time.Time
	PaymentID             string
	GatewaySubscriptionID string
	Plan                  PlanType
	Source                PaymentSource
	Amount                int64
}

// Validate checks the activation is complete enough to apply
func (a Activation) Validate() error {
	if a.PaymentID == "" {
		return ErrInvalidRequest.WithDetail("field", "paymentId")
	}
	if !a.Plan.IsValid() {
		return ErrInvalidPlanType.withValue(string(a.Plan))
	}
	if a.Amount < 0 {
		return ErrInvalidRequest.WithDetail("field", "amount")
	}
	if a.StartDate.IsZero() {
		return ErrInvalidRequest.WithDetail("field", "startDate")
	}
	return nil
}
