package monitor

import (
	"context"
	"errors"

	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/aretw0/constraintflow/pkg/ports"
)

// subscribeLocked installs the handlers for the host topics. Every handler
// captures gen so deliveries racing a rebind are dropped.
func (m *Monitor) subscribeLocked(gen uint64) error {
	if m.bus == nil {
		return nil
	}

	handlers := []struct {
		topic string
		h     ports.Handler
	}{
		{domain.TopicTrace, func(ctx context.Context, e domain.Event) {
			ev, err := decodePayload[domain.ActivityEvent](e.Payload)
			if err != nil {
				m.logger.Warn("malformed trace event", "error", err)
				return
			}
			_, _ = m.handleActivity(ctx, ev, gen)
		}},
		{domain.TopicToggle, func(ctx context.Context, e domain.Event) {
			ev, err := decodePayload[domain.ToggleEvent](e.Payload)
			if err != nil {
				m.logger.Warn("malformed toggle event", "error", err)
				return
			}
			m.control(ctx, gen, func(ctx context.Context, gen uint64) error { return m.toggle(ctx, gen, ev.Active) })
		}},
		{domain.TopicPlay, func(ctx context.Context, _ domain.Event) {
			m.control(ctx, gen, func(ctx context.Context, gen uint64) error {
				return m.reset(ctx, gen, "start", domain.PhaseBoundRunning)
			})
		}},
		{domain.TopicPause, func(ctx context.Context, _ domain.Event) {
			m.control(ctx, gen, m.pause)
		}},
		{domain.TopicReset, func(ctx context.Context, _ domain.Event) {
			m.control(ctx, gen, func(ctx context.Context, gen uint64) error {
				return m.reset(ctx, gen, "reset", "")
			})
		}},
	}

	for _, sub := range handlers {
		id, err := m.bus.Subscribe(sub.topic, sub.h)
		if err != nil {
			return err
		}
		m.subs = append(m.subs, id)
	}
	return nil
}

// unsubscribeLocked releases every subscription held by the monitor.
func (m *Monitor) unsubscribeLocked() {
	if m.bus == nil {
		m.subs = nil
		return
	}
	for _, id := range m.subs {
		if err := m.bus.Unsubscribe(id); err != nil {
			m.logger.Warn("failed to unsubscribe", "id", id, "error", err)
		}
	}
	if len(m.subs) > 0 {
		m.logger.Debug("released subscriptions", "count", len(m.subs))
	}
	m.subs = nil
}

// control runs a simulation control for the subscription set of gen. fn
// checks gen under the monitor lock, so a rebind cannot slip in between.
func (m *Monitor) control(ctx context.Context, gen uint64, fn func(context.Context, uint64) error) {
	if err := fn(ctx, gen); err != nil && !errors.Is(err, errStaleGeneration) {
		m.logger.Debug("control ignored", "error", err)
	}
}

// Subscriptions returns the number of live bus subscriptions.
func (m *Monitor) Subscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
