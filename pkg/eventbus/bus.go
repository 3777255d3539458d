// Package eventbus provides an in-process, synchronous implementation of
// ports.EventBus.
//
// It stands in for the host simulation engine's event bus when the monitor
// runs inside a Go process (the HTTP host, the replay command, tests).
//
//	bus := eventbus.New()
//	id, _ := bus.Subscribe(domain.TopicTrace, handler)
//	_ = bus.Publish(ctx, domain.Event{Topic: domain.TopicTrace, Payload: ev})
//	_ = bus.Unsubscribe(id)
package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/constraintflow/internal/logging"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/aretw0/constraintflow/pkg/ports"
	"github.com/google/uuid"
)

var (
	// ErrNilHandler is returned when subscribing without a handler.
	ErrNilHandler = errors.New("handler cannot be nil")
	// ErrEmptyTopic is returned when subscribing or publishing without a topic.
	ErrEmptyTopic = errors.New("topic cannot be empty")
)

type subscription struct {
	id      string
	topic   string
	handler ports.Handler
}

// Bus delivers events synchronously, in subscription order.
// Handlers run outside the bus lock and may publish or (un)subscribe.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscription
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for delivery diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithClock overrides the clock used to stamp events published without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		b.now = now
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for topic. domain.TopicAll matches every topic.
func (b *Bus) Subscribe(topic string, h ports.Handler) (string, error) {
	if h == nil {
		return "", ErrNilHandler
	}
	if topic == "" {
		return "", ErrEmptyTopic
	}

	sub := &subscription{id: uuid.NewString(), topic: topic, handler: h}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	b.logger.Debug("subscribed", "topic", topic, "id", sub.id)
	return sub.id, nil
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return nil
		}
	}
	return nil
}

// Publish delivers e to every subscriber of e.Topic and of domain.TopicAll.
// A handler unsubscribed during delivery may still receive the event in flight.
func (b *Bus) Publish(ctx context.Context, e domain.Event) error {
	if e.Topic == "" {
		return ErrEmptyTopic
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = b.now()
	}

	b.mu.RLock()
	var targets []ports.Handler
	for _, sub := range b.subs {
		if sub.topic == e.Topic || sub.topic == domain.TopicAll {
			targets = append(targets, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		h(ctx, e)
	}
	return nil
}

// Count returns the number of live subscriptions.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// CountTopic returns the number of live subscriptions on topic.
func (b *Bus) CountTopic(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, sub := range b.subs {
		if sub.topic == topic {
			n++
		}
	}
	return n
}
