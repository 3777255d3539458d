package bolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/constraintflow/pkg/adapters/bolt"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/aretw0/constraintflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) (*bolt.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cflow.db")
	store, err := bolt.Open(path)
	require.NoError(t, err)
	return store, path
}

func TestBoltStore_Contract(t *testing.T) {
	store, _ := openStore(t)
	defer store.Close()
	ports.RunCursorStoreContract(t, store)
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	store, path := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Cursor{SessionID: "s", State: "(1,2)", Steps: 3}))
	require.NoError(t, store.PutAutomaton(ctx, "fp", []byte(`{"init_state":"0"}`)))
	require.NoError(t, store.Close())

	reopened, err := bolt.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	c, err := reopened.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "(1,2)", c.State)
	assert.Equal(t, 3, c.Steps)

	data, ok, err := reopened.GetAutomaton(ctx, "fp")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"init_state":"0"}`, string(data))
}

func TestBoltStore_AutomatonMiss(t *testing.T) {
	store, _ := openStore(t)
	defer store.Close()

	data, ok, err := store.GetAutomaton(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestBoltStore_Implements(t *testing.T) {
	var _ ports.CursorStore = (*bolt.Store)(nil)
	var _ ports.AutomatonCache = (*bolt.Store)(nil)
}
