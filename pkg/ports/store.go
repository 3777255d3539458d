package ports

import (
	"context"

	"github.com/aretw0/constraintflow/pkg/domain"
)

// CursorStore persists monitor cursors.
// This lets a host resume a simulation where it left off after a restart.
type CursorStore interface {
	// Save persists the cursor under its session ID.
	Save(ctx context.Context, cursor *domain.Cursor) error

	// Load retrieves the cursor for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Cursor, error)

	// Delete removes the cursor for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of every stored session.
	List(ctx context.Context) ([]string, error)
}

// AutomatonCache stores compiled automata (wire JSON) by payload fingerprint,
// so an unchanged model does not need another compiler round-trip.
type AutomatonCache interface {
	GetAutomaton(ctx context.Context, key string) ([]byte, bool, error)
	PutAutomaton(ctx context.Context, key string, data []byte) error
}
