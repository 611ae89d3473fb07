// Package expiry persists the Expired state for lapsed trials and cancelled
// plans, including users who never open the app again.
package expiry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/internal/services/notify"
	"github.com/kevin07696/subscription-service/pkg/observability"
)

// DefaultBatchSize bounds each ListLapsed page
const DefaultBatchSize = 100

// Sweeper expires lapsed accounts. It never renews; renewal happens at app
// launch.
type Sweeper struct {
	store     ports.SubscriptionStore
	notifier  *notify.Notifier
	logger    ports.Logger
	batchSize int
}

// NewSweeper creates a sweeper; batchSize <= 0 uses DefaultBatchSize
func NewSweeper(store ports.SubscriptionStore, notifier *notify.Notifier, logger ports.Logger, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Sweeper{store: store, notifier: notifier, logger: logger, batchSize: batchSize}
}

// Sweep expires every account due at now and returns how many changed.
// A failing account is logged and skipped; its error is joined into the
// result.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	var (
		expired int
		errs    []error
		// accounts still listed after a visit: failures, or rows the
		// store lists but the aggregate no longer considers due
		skip = make(map[string]bool)
	)

	for {
		limit := s.batchSize + len(skip)
		ids, err := s.store.ListLapsed(ctx, now, limit)
		if err != nil {
			return expired, errors.Join(append(errs, fmt.Errorf("list lapsed accounts: %w", err))...)
		}

		progressed := false
		for _, id := range ids {
			if skip[id] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return expired, errors.Join(append(errs, err)...)
			}
			progressed = true
			ok, err := s.expire(ctx, id, now)
			if err != nil {
				skip[id] = true
				errs = append(errs, fmt.Errorf("expire %s: %w", id, err))
				continue
			}
			if ok {
				expired++
			} else {
				skip[id] = true
			}
		}

		if !progressed || len(ids) < limit {
			break
		}
	}

	s.logger.Info("Expiry sweep finished",
		ports.Int("expired", expired),
		ports.Int("failed", len(errs)),
	)
	return expired, errors.Join(errs...)
}

func (s *Sweeper) expire(ctx context.Context, userID string, now time.Time) (bool, error) {
	acc, changed, err := s.store.Mutate(ctx, userID, func(acc *domain.Account) (bool, error) {
		return acc.Expire(now), nil
	})
	if err != nil {
		s.logger.Error("Failed to expire subscription",
			ports.String("user_id", userID),
			ports.Err(err),
		)
		return false, err
	}
	if !changed {
		return false, nil
	}

	cur := acc.Current()
	observability.RecordExpiry(string(cur.Type), "sweep")
	s.notifier.Emit(ctx, ports.EventSubscriptionExpired, acc, "", now)
	return true, nil
}
