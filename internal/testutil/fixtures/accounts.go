// Package fixtures provides test data builders and helpers.
package fixtures

import (
	"context"
	"testing"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/stretchr/testify/require"
)

// Date returns midnight UTC of the given day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ActivationBuilder provides a fluent API for building payment activations
type ActivationBuilder struct {
	act domain.Activation
}

// NewActivation starts from a monthly client payment of 9.99 on 2024-01-15
func NewActivation() *ActivationBuilder {
	return &ActivationBuilder{act: domain.Activation{
		PaymentID: "pi_123",
		Plan:      domain.PlanTypeMonthly,
		Amount:    999,
		StartDate: Date(2024, time.January, 15),
		Source:    domain.PaymentSourceClient,
	}}
}

func (b *ActivationBuilder) WithPaymentID(id string) *ActivationBuilder {
	b.act.PaymentID = id
	return b
}

func (b *ActivationBuilder) WithPlan(plan domain.PlanType) *ActivationBuilder {
	b.act.Plan = plan
	return b
}

func (b *ActivationBuilder) WithAmount(amount int64) *ActivationBuilder {
	b.act.Amount = amount
	return b
}

func (b *ActivationBuilder) WithStart(start time.Time) *ActivationBuilder {
	b.act.StartDate = start
	return b
}

func (b *ActivationBuilder) WithSource(source domain.PaymentSource) *ActivationBuilder {
	b.act.Source = source
	return b
}

func (b *ActivationBuilder) WithGatewaySubscription(id string) *ActivationBuilder {
	b.act.GatewaySubscriptionID = id
	return b
}

func (b *ActivationBuilder) Build() domain.Activation {
	return b.act
}

// Seed applies acts to userID's account in store, failing the test on error
func Seed(t *testing.T, store ports.SubscriptionStore, userID string, acts ...domain.Activation) *domain.Account {
	t.Helper()
	var acc *domain.Account
	for _, act := range acts {
		var err error
		acc, _, err = store.Mutate(context.Background(), userID, func(a *domain.Account) (bool, error) {
			return a.ApplyPayment(act)
		})
		require.NoError(t, err)
	}
	return acc
}

// SeedCancelled seeds an activation and cancels it
func SeedCancelled(t *testing.T, store ports.SubscriptionStore, userID string, act domain.Activation) *domain.Account {
	t.Helper()
	Seed(t, store, userID, act)
	acc, _, err := store.Mutate(context.Background(), userID, func(a *domain.Account) (bool, error) {
		return a.Cancel()
	})
	require.NoError(t, err)
	return acc
}
