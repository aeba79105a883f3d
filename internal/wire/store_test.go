package wire

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andrebq/secrets/identity"
	"github.com/andrebq/secrets/secret"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested")
	store, closeFn, err := OpenStore(ctx, StoreOptions{Kind: StoreSQLite, Dir: dir, Timeout: time.Second})
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, store.Ping(ctx))
	_, err = store.FindOne(ctx, identity.Filter{Identifier: "nobody"})
	require.ErrorIs(t, err, identity.NotFound{})
	_, err = os.Stat(dir)
	require.NoError(t, err)
}

func TestOpenUnknownStore(t *testing.T) {
	_, _, err := OpenStore(context.Background(), StoreOptions{Kind: "redis"})
	require.Error(t, err)
}

func TestRootKeyIsScrubbed(t *testing.T) {
	val, err := secret.GenerateKey(nil)
	require.NoError(t, err)
	t.Setenv("WIRE_TEST_KEY", val)

	keyfn, err := RootKey("WIRE_TEST_KEY")
	require.NoError(t, err)
	require.Empty(t, os.Getenv("WIRE_TEST_KEY"))

	transform, err := Transform(context.Background(), secret.SchemeSecretbox, keyfn)
	require.NoError(t, err)
	require.Equal(t, secret.SchemeSecretbox, transform.Scheme())

	_, err = RootKey("WIRE_TEST_KEY")
	require.Error(t, err, "the key can only be read once")
}

func TestTransformKeyRequirement(t *testing.T) {
	for _, scheme := range []secret.Scheme{secret.SchemePlain, secret.SchemeBcrypt, secret.SchemeArgon2id} {
		require.False(t, NeedsKey(scheme))
		transform, err := Transform(context.Background(), scheme, nil)
		require.NoError(t, err)
		require.Equal(t, scheme, transform.Scheme())
	}
	require.True(t, NeedsKey(secret.SchemeSecretbox))
	_, err := Transform(context.Background(), secret.SchemeSecretbox, nil)
	require.Error(t, err)
}
