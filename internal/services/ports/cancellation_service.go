package ports

import (
	"context"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
)

// CancelResult carries the record after cancellation
type CancelResult struct {
	Subscription     *domain.SubscriptionRecord
	AlreadyCancelled bool
}

// CancellationService stops auto renewal while keeping access until endDate
type CancellationService interface {
	Cancel(ctx context.Context, userID string, now time.Time) (*CancelResult, error)
}
