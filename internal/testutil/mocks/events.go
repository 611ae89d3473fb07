package mocks

import (
	"context"
	"sync"

	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/stretchr/testify/mock"
)

// RecordingPublisher keeps every published event in order
type RecordingPublisher struct {
	err    error
	events []ports.SubscriptionEvent
	mu     sync.Mutex
}

var _ ports.EventPublisher = (*RecordingPublisher)(nil)

// NewRecordingPublisher creates a publisher that records and succeeds
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

// FailWith makes every later Publish return err after recording the event
func (p *RecordingPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *RecordingPublisher) Publish(_ context.Context, event ports.SubscriptionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

// Events returns the published events
func (p *RecordingPublisher) Events() []ports.SubscriptionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ports.SubscriptionEvent(nil), p.events...)
}

// Types returns the published event types in order
func (p *RecordingPublisher) Types() []ports.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]ports.EventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

// MockEventDeduper is a testify mock of ports.EventDeduper
type MockEventDeduper struct {
	mock.Mock
}

var _ ports.EventDeduper = (*MockEventDeduper)(nil)

func (m *MockEventDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEventDeduper) MarkProcessed(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}
