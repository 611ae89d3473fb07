package ports

import (
	"context"
	"time"
)

// WebhookOutcome is how an authentic webhook event was handled
type WebhookOutcome string

const (
	WebhookProcessed WebhookOutcome = "processed"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookIgnored   WebhookOutcome = "ignored"
	// WebhookRejected is an authentic event whose payload cannot be applied.
	// It is acknowledged so the gateway does not redeliver it forever.
	WebhookRejected WebhookOutcome = "rejected"
)

// WebhookResult summarises the handling of one event
type WebhookResult struct {
	EventID   string
	EventType string
	UserID    string
	Outcome   WebhookOutcome
}

// WebhookService is the gateway's authoritative writer
type WebhookService interface {
	// HandleEvent returns ErrInvalidSignature for unauthenticated payloads and
	// an error for failures the gateway should retry
	HandleEvent(ctx context.Context, payload []byte, signatureHeader string, now time.Time) (*WebhookResult, error)
}
