package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCursorStoreContract runs a suite of tests to verify that a CursorStore
// implementation adheres to the interface contract.
func RunCursorStoreContract(t *testing.T, store CursorStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		cursor := &domain.Cursor{
			SessionID: sessionID,
			State:     "(1,0)",
			Initial:   "(0,0)",
			Phase:     domain.PhaseBoundRunning,
			Steps:     1,
			History:   []string{"Activity_A"},
			UpdatedAt: time.Now().UTC().Truncate(time.Second),
		}

		err := store.Save(ctx, cursor)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, cursor.State, loaded.State)
		assert.Equal(t, cursor.Initial, loaded.Initial)
		assert.Equal(t, cursor.Phase, loaded.Phase)
		assert.Equal(t, cursor.Steps, loaded.Steps)
		assert.Equal(t, cursor.History, loaded.History)
		assert.True(t, cursor.UpdatedAt.Equal(loaded.UpdatedAt))
	})

	t.Run("Load Is A Copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.State = "tampered"

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.NotEqual(t, "tampered", again.State)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, &domain.Cursor{SessionID: sessionID, State: "0"})
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, &domain.Cursor{SessionID: id1, State: "0"}))
		require.NoError(t, store.Save(ctx, &domain.Cursor{SessionID: id2, State: "0"}))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
