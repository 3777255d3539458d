// Package mqtt publishes monitor events to an MQTT broker, so dashboards and
// devices outside the process can follow constraint statuses.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/constraintflow/internal/logging"
	"github.com/aretw0/constraintflow/pkg/domain"
	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultTopicPrefix is prepended to every published topic.
const DefaultTopicPrefix = "cflow/"

// ErrPublishTimeout is returned when the broker does not acknowledge in time.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// Client is the part of paho.Client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Publisher implements ports.Sink over MQTT. Dotted event topics become
// slash-separated MQTT topics: constraint.status.changed is published on
// <prefix>constraint/status/changed.
type Publisher struct {
	client  Client
	prefix  string
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithPrefix overrides DefaultTopicPrefix.
func WithPrefix(prefix string) Option {
	return func(p *Publisher) {
		p.prefix = prefix
	}
}

// WithQoS sets the quality of service (0, 1 or 2).
func WithQoS(qos byte) Option {
	return func(p *Publisher) {
		p.qos = qos
	}
}

// WithTimeout bounds the wait for the broker acknowledgement.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		p.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher wraps a connected client.
func NewPublisher(client Client, opts ...Option) *Publisher {
	p := &Publisher{
		client:  client,
		prefix:  DefaultTopicPrefix,
		timeout: 5 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Topic maps an event topic to its MQTT topic.
func (p *Publisher) Topic(topic string) string {
	return p.prefix + strings.ReplaceAll(topic, ".", "/")
}

// Emit publishes the event payload as JSON and waits for the acknowledgement.
func (p *Publisher) Emit(ctx context.Context, e domain.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := p.Topic(e.Topic)
	token := p.client.Publish(topic, p.qos, false, data)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	p.logger.Debug("published", "topic", topic, "bytes", len(data))
	return nil
}

// Connect dials a broker and returns a connected paho client.
func Connect(ctx context.Context, broker, clientID string, logger *slog.Logger) (paho.Client, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetKeepAlive(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", broker, "error", err)
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", broker, err)
	}
	logger.Info("mqtt connected", "broker", broker, "client_id", clientID)
	return client, nil
}
