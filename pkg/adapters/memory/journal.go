package memory

import (
	"context"
	"sync"

	"github.com/aretw0/constraintflow/pkg/domain"
)

// DefaultJournalSize bounds a journal created with a non-positive capacity.
const DefaultJournalSize = 512

// Journal is a ports.Sink keeping the most recent emitted events in a ring.
// Hosts use it to show the trail of a simulation to late joiners.
type Journal struct {
	mu    sync.RWMutex
	buf   []domain.Event
	next  int
	full  bool
	total int
}

// NewJournal creates a journal holding up to size events.
func NewJournal(size int) *Journal {
	if size <= 0 {
		size = DefaultJournalSize
	}
	return &Journal{buf: make([]domain.Event, size)}
}

// Emit records e, evicting the oldest event when full.
func (j *Journal) Emit(_ context.Context, e domain.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.buf[j.next] = e
	j.next = (j.next + 1) % len(j.buf)
	if j.next == 0 {
		j.full = true
	}
	j.total++
	return nil
}

// Events returns the retained events, oldest first.
// A non-empty topic filters on it.
func (j *Journal) Events(topic string) []domain.Event {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var ordered []domain.Event
	if j.full {
		ordered = append(ordered, j.buf[j.next:]...)
	}
	ordered = append(ordered, j.buf[:j.next]...)

	if topic == "" {
		return ordered
	}
	out := ordered[:0]
	for _, e := range ordered {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// Total returns how many events were ever recorded.
func (j *Journal) Total() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.total
}

// Clear drops every retained event.
func (j *Journal) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()

	clear(j.buf)
	j.next = 0
	j.full = false
}
