package users

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andrebq/secrets/auth"
	"github.com/andrebq/secrets/secret"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func run(t *testing.T, dir, key, stdin string, args ...string) (string, error) {
	return runVariant(t, "encrypted", dir, key, stdin, args...)
}

func runVariant(t *testing.T, variant, dir, key, stdin string, args ...string) (string, error) {
	t.Setenv("USERS_TEST_KEY", key)
	var out bytes.Buffer
	app := &cli.App{
		Name:     "secrets",
		Reader:   strings.NewReader(stdin),
		Writer:   &out,
		Commands: []*cli.Command{Cmd()},
	}
	base := []string{"secrets", "users", "--variant", variant, "--db", dir, "--root-key-envvar-name", "USERS_TEST_KEY"}
	err := app.RunContext(context.Background(), append(base, args...))
	return strings.TrimSpace(out.String()), err
}

func TestRegisterAndVerify(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	key, err := secret.GenerateKey(nil)
	require.NoError(t, err)

	id, err := run(t, dir, key, "pw1\n", "register", "-u", "a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	verified, err := run(t, dir, key, "pw1\n", "verify", "-u", "a@x.com")
	require.NoError(t, err)
	require.Equal(t, id, verified)

	_, err = run(t, dir, key, "wrong\n", "verify", "-u", "a@x.com")
	require.ErrorIs(t, err, auth.ErrRejected)

	_, err = run(t, dir, key, "\n", "register", "-u", "b@x.com")
	require.Error(t, err)
}

func TestHashedVariantWithoutRootKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	for _, variant := range []string{"plaintext", "hashed"} {
		id, err := runVariant(t, variant, filepath.Join(dir, variant), "", "pw1\n", "register", "-u", "a@x.com")
		require.NoError(t, err)
		verified, err := runVariant(t, variant, filepath.Join(dir, variant), "", "pw1\n", "verify", "-u", "a@x.com")
		require.NoError(t, err)
		require.Equal(t, id, verified)
	}

	_, err := runVariant(t, "encrypted", filepath.Join(dir, "encrypted"), "", "pw1\n", "register", "-u", "a@x.com")
	require.Error(t, err, "encrypted variant cannot run without the root key")
}

func TestReadPassword(t *testing.T) {
	pw, err := readPassword(strings.NewReader("  hunter2 \nignored\n"))
	require.NoError(t, err)
	require.Equal(t, "hunter2", string(pw))

	_, err = readPassword(strings.NewReader(""))
	require.Error(t, err)
}
