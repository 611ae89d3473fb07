package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(ctx, exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func (m *mockChannel) Close() error {
	return m.Called().Error(0)
}

func sampleEvent() ports.SubscriptionEvent {
	return ports.NewSubscriptionEvent(
		ports.EventSubscriptionActivated,
		"user-1",
		&domain.SubscriptionRecord{
			Type:      domain.PlanTypeMonthly,
			Status:    domain.SubscriptionStatusActive,
			StartDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
			PaymentID: "pi_123",
			Amount:    999,
			AutoRenew: true,
		},
		"pi_123",
		time.Date(2024, 1, 15, 0, 0, 1, 0, time.UTC),
	)
}

func TestRabbitMQPublisher_Publish(t *testing.T) {
	ch := &mockChannel{}
	p := &RabbitMQPublisher{channel: ch, logger: zap.NewNop(), exchange: DefaultExchange}
	event := sampleEvent()

	ch.On("PublishWithContext", mock.Anything, DefaultExchange, "subscription.activated", false, false,
		mock.MatchedBy(func(msg amqp.Publishing) bool {
			var decoded ports.SubscriptionEvent
			if err := json.Unmarshal(msg.Body, &decoded); err != nil {
				return false
			}
			return msg.MessageId == event.ID &&
				msg.DeliveryMode == amqp.Persistent &&
				msg.ContentType == "application/json" &&
				decoded.UserID == "user-1" &&
				decoded.Subscription.PaymentID == "pi_123"
		}),
	).Return(nil).Once()

	require.NoError(t, p.Publish(context.Background(), event))
	ch.AssertExpectations(t)
}

func TestRabbitMQPublisher_PublishError(t *testing.T) {
	ch := &mockChannel{}
	p := &RabbitMQPublisher{channel: ch, logger: zap.NewNop(), exchange: DefaultExchange}
	ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, false, false, mock.Anything).
		Return(amqp.ErrClosed)

	err := p.Publish(context.Background(), sampleEvent())
	assert.True(t, errors.Is(err, amqp.ErrClosed))
}

func TestRabbitMQPublisher_Close(t *testing.T) {
	ch := &mockChannel{}
	ch.On("Close").Return(nil).Once()
	p := &RabbitMQPublisher{channel: ch, logger: zap.NewNop()}

	require.NoError(t, p.Close())
	ch.AssertExpectations(t)
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))

	entries := logs.FilterMessage("Subscription event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "subscription.activated", fields["event_type"])
	assert.Equal(t, "user-1", fields["user_id"])
	assert.Equal(t, "pi_123", fields["payment_id"])
	assert.Equal(t, "monthly", fields["plan"])
}
