package eventbus

import (
	"context"

	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/aretw0/constraintflow/pkg/ports"
)

// BusSink republishes monitor events onto an EventBus, so other subscribers
// of the host bus (renderers, property panels) can react to them.
type BusSink struct {
	bus ports.EventBus
}

// NewSink wraps bus as a ports.Sink.
func NewSink(bus ports.EventBus) *BusSink {
	return &BusSink{bus: bus}
}

// Emit publishes e on the wrapped bus.
func (s *BusSink) Emit(ctx context.Context, e domain.Event) error {
	return s.bus.Publish(ctx, e)
}
