// Package file persists monitor cursors and compiled automata as JSON files.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/constraintflow/pkg/domain"
)

const (
	ext         = ".json"
	automataDir = "automata"
)

// Store implements ports.CursorStore and ports.AutomatonCache on the local
// filesystem. Cursors live in BasePath/<session>.json, automata in
// BasePath/automata/<fingerprint>.json.
type Store struct {
	BasePath string
}

// New creates a Store rooted at basePath.
// If basePath is empty, it defaults to ".cflow/sessions".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".cflow", "sessions")
	}
	return &Store{BasePath: basePath}
}

// Save persists the cursor atomically.
func (s *Store) Save(_ context.Context, cursor *domain.Cursor) error {
	if cursor == nil || cursor.SessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	data, err := json.MarshalIndent(cursor, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return writeAtomic(s.BasePath, cursor.SessionID+ext, data)
}

// Load retrieves the cursor of sessionID.
func (s *Store) Load(_ context.Context, sessionID string) (*domain.Cursor, error) {
	if sessionID == "" {
		return nil, errors.New("sessionID cannot be empty")
	}
	data, err := os.ReadFile(filepath.Join(s.BasePath, sessionID+ext))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var c domain.Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cursor: %w", err)
	}
	return &c, nil
}

// Delete removes the session file. Missing sessions are not an error.
func (s *Store) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	err := os.Remove(filepath.Join(s.BasePath, sessionID+ext))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// List returns every stored session ID.
func (s *Store) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "tmp-") {
			continue
		}
		if id, ok := strings.CutSuffix(name, ext); ok {
			sessions = append(sessions, id)
		}
	}
	return sessions, nil
}

// GetAutomaton implements ports.AutomatonCache.
func (s *Store) GetAutomaton(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.BasePath, automataDir, key+ext))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read automaton: %w", err)
	}
	return data, true, nil
}

// PutAutomaton implements ports.AutomatonCache.
func (s *Store) PutAutomaton(_ context.Context, key string, data []byte) error {
	return writeAtomic(filepath.Join(s.BasePath, automataDir), key+ext, data)
}

// writeAtomic writes to a temp file in dir, fsyncs it and renames it over name.
// The temp file shares dir so the rename stays on one filesystem.
func writeAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "tmp-*"+ext)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	dest := filepath.Join(dir, name)
	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(dest); err == nil {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("failed to replace %s: %w", name, err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
