package ports

import (
	"context"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
)

// MutateFunc changes an account in place and reports whether anything changed.
// It may run more than once when a store retries on a concurrent write, so it
// must derive its decision from the account it is given.
type MutateFunc func(acc *domain.Account) (bool, error)

// SubscriptionStore persists billing accounts. Writers never overwrite an
// account wholesale: Mutate loads the aggregate, applies fn, then upserts the
// current record and appends only the new history and ledger entries, all
// atomically for that user.
type SubscriptionStore interface {
	// Get returns ErrSubscriptionNotFound for an unknown user
	Get(ctx context.Context, userID string) (*domain.Account, error)

	// Mutate creates the account when absent. When fn reports no change
	// nothing is written. The returned account reflects the stored state.
	Mutate(ctx context.Context, userID string, fn MutateFunc) (*domain.Account, bool, error)

	// ListLapsed returns users whose current record is due to expire at now
	ListLapsed(ctx context.Context, now time.Time, limit int) ([]string, error)
}
