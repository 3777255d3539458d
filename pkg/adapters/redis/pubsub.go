package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/constraintflow/internal/logging"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/aretw0/constraintflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix namespaces pub/sub channels. The event topic is appended.
const DefaultChannelPrefix = "cflow:events:"

// Message is the JSON envelope carried on a channel.
type Message struct {
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Publisher is a ports.Sink that PUBLISHes every event on <prefix><topic>.
type Publisher struct {
	client *backend.Client
	prefix string
}

// NewPublisher creates a publisher. An empty prefix selects DefaultChannelPrefix.
func NewPublisher(client *backend.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Publisher{client: client, prefix: prefix}
}

// Emit publishes e.
func (p *Publisher) Emit(ctx context.Context, e domain.Event) error {
	data, err := encodeMessage(e)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.prefix+e.Topic, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.Topic, err)
	}
	return nil
}

func encodeMessage(e domain.Event) ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return json.Marshal(Message{Topic: e.Topic, Timestamp: e.Timestamp, Payload: payload})
}

// Relay forwards host events published on Redis into a local EventBus.
// This lets a simulation engine running elsewhere drive the monitor.
type Relay struct {
	client *backend.Client
	bus    ports.EventBus
	prefix string
	topics []string
	logger *slog.Logger
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithRelayPrefix overrides DefaultChannelPrefix.
func WithRelayPrefix(prefix string) RelayOption {
	return func(r *Relay) {
		r.prefix = prefix
	}
}

// WithRelayTopics overrides the relayed topics (the host topics by default).
func WithRelayTopics(topics ...string) RelayOption {
	return func(r *Relay) {
		r.topics = topics
	}
}

// WithRelayLogger sets the logger.
func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

// NewRelay creates a relay into bus.
func NewRelay(client *backend.Client, bus ports.EventBus, opts ...RelayOption) *Relay {
	r := &Relay{
		client: client,
		bus:    bus,
		prefix: DefaultChannelPrefix,
		topics: []string{
			domain.TopicTrace,
			domain.TopicToggle,
			domain.TopicPlay,
			domain.TopicPause,
			domain.TopicReset,
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run subscribes and forwards messages until ctx is done. ready, if not nil,
// is closed once the subscription is confirmed.
func (r *Relay) Run(ctx context.Context, ready chan<- struct{}) error {
	channels := make([]string, len(r.topics))
	for i, t := range r.topics {
		channels[i] = r.prefix + t
	}

	sub := r.client.Subscribe(ctx, channels...)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}
	r.logger.Info("relay subscribed", "channels", len(channels))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.forward(ctx, msg)
		}
	}
}

func (r *Relay) forward(ctx context.Context, msg *backend.Message) {
	var m Message
	if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
		r.logger.Warn("dropping malformed message", "channel", msg.Channel, "error", err)
		return
	}
	if m.Topic == "" {
		m.Topic = strings.TrimPrefix(msg.Channel, r.prefix)
	}

	e := domain.Event{Topic: m.Topic, Timestamp: m.Timestamp}
	if len(m.Payload) > 0 && string(m.Payload) != "null" {
		e.Payload = m.Payload
	}
	if err := r.bus.Publish(ctx, e); err != nil {
		r.logger.Warn("failed to relay event", "topic", m.Topic, "error", err)
	}
}
