package ports

import "context"

// EventDeduper remembers gateway event ids that were fully processed. It is
// a fast path only; the payment ledger stays the source of truth.
type EventDeduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}
