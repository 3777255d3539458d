package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/aretw0/constraintflow/pkg/domain"
)

// Store implements ports.CursorStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Cursor
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Cursor),
	}
}

// Save persists a copy of the cursor.
func (s *Store) Save(ctx context.Context, cursor *domain.Cursor) error {
	c := *cursor
	c.History = slices.Clone(cursor.History)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[c.SessionID] = c
	return nil
}

// Load returns a copy of the stored cursor, so callers cannot mutate the store.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	c.History = slices.Clone(c.History)
	return &c, nil
}

// Delete removes the cursor.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns stored session IDs in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}
