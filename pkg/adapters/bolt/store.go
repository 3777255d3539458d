// Package bolt provides a single-file durable store backed by bbolt: monitor
// cursors plus a cache of compiled automata keyed by payload fingerprint.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/constraintflow/pkg/domain"
	bbolt "go.etcd.io/bbolt"
)

var (
	cursorsBucket  = []byte("cursors")
	automataBucket = []byte("automata")
)

// Store implements ports.CursorStore and ports.AutomatonCache.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the database file.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{cursorsBucket, automataBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists the cursor.
func (s *Store) Save(ctx context.Context, cursor *domain.Cursor) error {
	data, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(cursorsBucket).Put([]byte(cursor.SessionID), data)
	})
}

// Load retrieves the cursor for sessionID.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Cursor, error) {
	var cursor domain.Cursor
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(cursorsBucket).Get([]byte(sessionID))
		if data == nil {
			return domain.ErrSessionNotFound
		}
		return json.Unmarshal(data, &cursor)
	})
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}

// Delete removes the cursor.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(cursorsBucket).Delete([]byte(sessionID))
	})
}

// List returns the stored session IDs in key order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(cursorsBucket).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

// GetAutomaton returns the cached automaton JSON for key.
func (s *Store) GetAutomaton(ctx context.Context, key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(automataBucket).Get([]byte(key)); data != nil {
			// Values are only valid for the life of the transaction.
			out = append([]byte(nil), data...)
		}
		return nil
	})
	return out, out != nil, err
}

// PutAutomaton caches automaton JSON under key.
func (s *Store) PutAutomaton(ctx context.Context, key string, data []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(automataBucket).Put([]byte(key), data)
	})
}
