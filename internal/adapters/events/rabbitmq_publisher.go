// Package events delivers subscription lifecycle events to other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kevin07696/subscription-service/internal/domain/ports"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultExchange is the topic exchange billing events are published to
const DefaultExchange = "billing.subscription.events"

// amqpChannel is the part of *amqp.Channel the publisher uses
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher publishes events with the event type as routing key
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  amqpChannel
	logger   *zap.Logger
	exchange string
	mu       sync.Mutex
}

var _ ports.EventPublisher = (*RabbitMQPublisher)(nil)

// NewRabbitMQPublisher dials url and declares a durable topic exchange
func NewRabbitMQPublisher(url, exchange string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	logger.Info("RabbitMQ publisher connected", zap.String("exchange", exchange))
	return &RabbitMQPublisher{conn: conn, channel: ch, logger: logger, exchange: exchange}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, event ports.SubscriptionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	p.logger.Debug("Event published",
		zap.String("event_id", event.ID),
		zap.String("routing_key", string(event.Type)),
		zap.Int("size", len(body)),
	)
	return nil
}

// Close closes the channel and the connection
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn("Error closing channel", zap.Error(err))
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// LogPublisher writes events to the log instead of a broker
type LogPublisher struct {
	logger *zap.Logger
}

var _ ports.EventPublisher = (*LogPublisher)(nil)

// NewLogPublisher creates a publisher for deployments without a broker
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event ports.SubscriptionEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("user_id", event.UserID),
		zap.Time("occurred_at", event.OccurredAt),
	}
	if event.PaymentID != "" {
		fields = append(fields, zap.String("payment_id", event.PaymentID))
	}
	if event.Subscription != nil {
		fields = append(fields,
			zap.String("plan", string(event.Subscription.Type)),
			zap.String("status", string(event.Subscription.Status)),
			zap.Time("end_date", event.Subscription.EndDate),
		)
	}
	p.logger.Info("Subscription event", fields...)
	return nil
}
