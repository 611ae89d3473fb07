// Package mongo stores each billing account as one MongoDB document holding
// the current record, the history and the payment ledger.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	// CollectionName is the collection holding billing account documents
	CollectionName = "billing_accounts"

	maxWriteAttempts = 5
)

// ErrWriteConflict is returned when concurrent writers kept winning the
// version race for every attempt
var ErrWriteConflict = errors.New("mongo: concurrent write conflict")

type accountDocument struct {
	UpdatedAt time.Time                   `bson:"updatedAt"`
	Current   *domain.SubscriptionRecord  `bson:"current,omitempty"`
	UserID    string                      `bson:"_id"`
	History   []domain.SubscriptionRecord `bson:"history"`
	Payments  []domain.PaymentRecord      `bson:"payments"`
	Version   int64                       `bson:"version"`
}

// SubscriptionStore implements optimistic concurrency on the document
// version. Every update also asserts that none of its new payment ids are in
// the ledger yet, so the idempotency rule holds at the storage level too.
type SubscriptionStore struct {
	coll *mongo.Collection
}

var _ ports.SubscriptionStore = (*SubscriptionStore)(nil)

// NewSubscriptionStore creates a store on db's billing_accounts collection
func NewSubscriptionStore(db *mongo.Database) *SubscriptionStore {
	return &SubscriptionStore{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the index used by the expiry sweep
func (s *SubscriptionStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "current.status", Value: 1}, {Key: "current.endDate", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) Get(ctx context.Context, userID string) (*domain.Account, error) {
	doc, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return doc.account(), nil
}

func (s *SubscriptionStore) Mutate(ctx context.Context, userID string, fn ports.MutateFunc) (*domain.Account, bool, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		doc, err := s.find(ctx, userID)
		if err != nil {
			return nil, false, err
		}

		acc := domain.NewAccount(userID)
		if doc != nil {
			acc = doc.account()
		}

		changed, err := fn(acc)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return acc, false, nil
		}

		ok, err := s.write(ctx, acc)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return acc, true, nil
		}
	}
	return nil, false, domain.WrapError(domain.ErrorCodeDatabaseError, "mutate account", ErrWriteConflict)
}

// write persists acc's pending entries; false means another writer got there first
func (s *SubscriptionStore) write(ctx context.Context, acc *domain.Account) (bool, error) {
	next := acc.Version() + 1
	now := time.Now().UTC()

	if acc.Version() == 0 {
		_, err := s.coll.InsertOne(ctx, accountDocument{
			UserID:    acc.UserID(),
			Version:   next,
			Current:   acc.Current(),
			History:   nonNil(acc.History()),
			Payments:  nonNil(acc.Payments()),
			UpdatedAt: now,
		})
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		if err != nil {
			return false, domain.WrapError(domain.ErrorCodeDatabaseError, "insert account", err)
		}
		acc.MarkPersisted(next)
		return true, nil
	}

	pending := acc.PendingPayments()
	newIDs := make([]string, 0, len(pending))
	for _, p := range pending {
		newIDs = append(newIDs, p.ID)
	}

	filter := bson.M{
		"_id":         acc.UserID(),
		"version":     acc.Version(),
		"payments.id": bson.M{"$nin": newIDs},
	}
	update := bson.M{
		"$set": bson.M{
			"current":   acc.Current(),
			"version":   next,
			"updatedAt": now,
		},
		"$push": bson.M{
			"history":  bson.M{"$each": nonNil(acc.PendingHistory())},
			"payments": bson.M{"$each": nonNil(pending)},
		},
	}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, domain.WrapError(domain.ErrorCodeDatabaseError, "update account", err)
	}
	if res.MatchedCount == 0 {
		return false, nil
	}
	acc.MarkPersisted(next)
	return true, nil
}

func (s *SubscriptionStore) ListLapsed(ctx context.Context, now time.Time, limit int) ([]string, error) {
	filter := bson.M{
		"current.endDate": bson.M{"$lt": now},
		"$or": bson.A{
			bson.M{"current.status": domain.SubscriptionStatusCancelled},
			bson.M{"current.status": domain.SubscriptionStatusActive, "current.type": domain.PlanTypeTrial},
		},
	}
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list lapsed accounts", err)
	}
	var docs []struct {
		UserID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "decode lapsed accounts", err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.UserID)
	}
	return ids, nil
}

func (s *SubscriptionStore) find(ctx context.Context, userID string) (*accountDocument, error) {
	var doc accountDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "load account", err)
	}
	return &doc, nil
}

func (d *accountDocument) account() *domain.Account {
	if d.Current != nil {
		d.Current.StartDate = d.Current.StartDate.UTC()
		d.Current.EndDate = d.Current.EndDate.UTC()
	}
	return domain.RestoreAccount(d.UserID, d.Current, d.History, d.Payments, d.Version)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
