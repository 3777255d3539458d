package ports

import (
	"context"

	"github.com/aretw0/constraintflow/pkg/domain"
)

// Handler consumes one event delivered by an EventBus.
type Handler func(ctx context.Context, e domain.Event)

// EventBus is the publish/subscribe channel shared with the host simulation engine.
type EventBus interface {
	// Subscribe registers h for topic and returns a subscription id.
	// The topic domain.TopicAll receives every event.
	Subscribe(topic string, h Handler) (string, error)

	// Unsubscribe removes a subscription. Unknown ids are ignored.
	Unsubscribe(id string) error

	// Publish delivers e to every matching subscriber.
	Publish(ctx context.Context, e domain.Event) error
}

// Sink receives the events emitted by the monitor.
// Implementations must not call back into the monitor.
type Sink interface {
	Emit(ctx context.Context, e domain.Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e domain.Event) error

// Emit calls f(ctx, e).
func (f SinkFunc) Emit(ctx context.Context, e domain.Event) error {
	return f(ctx, e)
}
