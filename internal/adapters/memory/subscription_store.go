// Package memory provides an in-process SubscriptionStore for tests and
// single-instance local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
)

// SubscriptionStore keeps accounts in a map guarded by a mutex. Callers only
// ever see clones, so an aggregate cannot be changed outside Mutate.
type SubscriptionStore struct {
	accounts map[string]*domain.Account
	mu       sync.RWMutex
}

var _ ports.SubscriptionStore = (*SubscriptionStore)(nil)

// NewSubscriptionStore creates an empty store
func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{accounts: make(map[string]*domain.Account)}
}

// Get returns a copy of the stored account
func (s *SubscriptionStore) Get(ctx context.Context, userID string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[userID]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}
	return acc.Clone(), nil
}

// Mutate applies fn under the store lock and keeps the result only when fn
// reports a change
func (s *SubscriptionStore) Mutate(ctx context.Context, userID string, fn ports.MutateFunc) (*domain.Account, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := domain.NewAccount(userID)
	if acc, ok := s.accounts[userID]; ok {
		working = acc.Clone()
	}

	changed, err := fn(working)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return working, false, nil
	}

	working.MarkPersisted(working.Version() + 1)
	s.accounts[userID] = working
	return working.Clone(), true, nil
}

// ListLapsed returns users due for expiry in user id order
func (s *SubscriptionStore) ListLapsed(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, acc := range s.accounts {
		if acc.ExpiryDue(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
