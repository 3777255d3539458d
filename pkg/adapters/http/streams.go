package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/constraintflow/internal/logging"
	"github.com/aretw0/constraintflow/pkg/domain"
)

const streamBuffer = 32

type subscriber struct {
	ch     chan []byte
	topics []string
}

// StreamManager fans bus events out to connected SSE and websocket clients.
// It implements ports.Sink.
type StreamManager struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	logger *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subs:   make(map[*subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers a client. topics filters by exact topic or by prefix
// ending in '*'; an empty filter receives everything.
func (sm *StreamManager) Subscribe(topics []string) (<-chan []byte, func()) {
	sub := &subscriber{ch: make(chan []byte, streamBuffer), topics: topics}

	sm.mu.Lock()
	sm.subs[sub] = struct{}{}
	sm.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			delete(sm.subs, sub)
			sm.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Count returns the number of connected clients.
func (sm *StreamManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subs)
}

// Emit implements ports.Sink. Slow clients lose messages rather than
// blocking the publisher.
func (sm *StreamManager) Emit(_ context.Context, e domain.Event) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if len(sm.subs) == 0 {
		return nil
	}

	msg, err := json.Marshal(e)
	if err != nil {
		return err
	}
	for sub := range sm.subs {
		if !matchTopic(sub.topics, e.Topic) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			sm.logger.Warn("stream client buffer full, dropping event", "topic", e.Topic)
		}
	}
	return nil
}

// ParseTopics splits a comma separated filter.
func ParseTopics(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func matchTopic(filter []string, topic string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == domain.TopicAll || f == topic {
			return true
		}
		if prefix, ok := strings.CutSuffix(f, "*"); ok && strings.HasPrefix(topic, prefix) {
			return true
		}
	}
	return false
}
