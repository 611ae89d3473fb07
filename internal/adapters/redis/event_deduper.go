package redis

import (
	"context"
	"errors"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "billing:webhook:event:"

// EventDeduper remembers processed gateway event ids for ttl. Losing a key
// only costs a second pass through the ledger check.
type EventDeduper struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ ports.EventDeduper = (*EventDeduper)(nil)

// NewEventDeduper creates a deduper; gateways retry for days, so ttl should cover that window
func NewEventDeduper(client redis.UniversalClient, ttl time.Duration) *EventDeduper {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &EventDeduper{client: client, ttl: ttl}
}

func (d *EventDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	err := d.client.Get(ctx, eventKey(eventID)).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (d *EventDeduper) MarkProcessed(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, eventKey(eventID), time.Now().UTC().Format(time.RFC3339), d.ttl).Err()
}

func eventKey(eventID string) string {
	return keyPrefix + eventID
}
