package tokenstore

import (
	"context"
	"testing"

	"github.com/99designs/keyring"
	"github.com/sidesa/desa-admin/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store ports.TokenStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx)
	require.ErrorIs(t, err, ports.ErrNoToken)

	require.NoError(t, store.Set(ctx, "abc"))
	tok, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	require.NoError(t, store.Set(ctx, "newtoken"))
	tok, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "newtoken", tok)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Get(ctx)
	require.ErrorIs(t, err, ports.ErrNoToken)

	// Clearing an absent token is not an error.
	require.NoError(t, store.Clear(ctx))
}

func TestKeyringStore(t *testing.T) {
	exerciseStore(t, NewKeyringStore(keyring.NewArrayKeyring(nil), "token"))
}

func TestKeyringStore_ReadsExistingItem(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: "token", Data: []byte("persisted")}})
	store := NewKeyringStore(ring, "token")

	tok, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "persisted", tok)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(""))
}

func TestMemoryStore_Seeded(t *testing.T) {
	store := NewMemoryStore("abc")
	assert.Equal(t, "abc", store.Peek())
}
