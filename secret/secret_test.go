package secret

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testKeyFn(t *testing.T) KeyFn {
	val, err := GenerateKey(nil)
	require.NoError(t, err)
	k, err := ParseKey(val)
	require.NoError(t, err)
	return StaticKey(k)
}

func allTransforms(t *testing.T) []Transform {
	ctx := context.Background()
	box, err := Secretbox(ctx, testKeyFn(t), nil)
	require.NoError(t, err)
	return []Transform{
		Plain(),
		box,
		Bcrypt(bcrypt.MinCost),
		Argon2id(Argon2Params{Time: 1, Memory: 1024, Threads: 1}, nil),
	}
}

func TestSealAndMatch(t *testing.T) {
	for _, tr := range allTransforms(t) {
		t.Run(string(tr.Scheme()), func(t *testing.T) {
			m, err := tr.Seal(PlainText("pw1"))
			require.NoError(t, err)
			require.Equal(t, tr.Scheme(), m.Scheme)

			ok, err := tr.Match(PlainText("pw1"), m)
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = tr.Match(PlainText("wrong"), m)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestOneWaySchemesNeverStoreInput(t *testing.T) {
	for _, tr := range allTransforms(t) {
		if tr.Scheme() == SchemePlain {
			continue
		}
		for _, pw := range []string{"a", "pw1", "correct horse battery staple"} {
			m, err := tr.Seal(PlainText(pw))
			require.NoError(t, err)
			require.NotEqual(t, []byte(pw), m.Data)
			if len(pw) > 8 {
				require.False(t, bytes.Contains(m.Data, []byte(pw)), "%v leaked the password", tr.Scheme())
			}
		}
	}
}

func TestSaltMakesMaterialUnique(t *testing.T) {
	for _, tr := range allTransforms(t) {
		if tr.Scheme() == SchemePlain {
			continue
		}
		a, err := tr.Seal(PlainText("same"))
		require.NoError(t, err)
		b, err := tr.Seal(PlainText("same"))
		require.NoError(t, err)
		require.NotEqual(t, a.Data, b.Data)
	}
}

func TestSchemeMismatchIsInvalidMaterial(t *testing.T) {
	m, err := Plain().Seal(PlainText("pw"))
	require.NoError(t, err)
	_, err = Bcrypt(bcrypt.MinCost).Match(PlainText("pw"), m)
	require.True(t, errors.Is(err, InvalidSecretMaterial{}))
}

func TestCorruptMaterial(t *testing.T) {
	for _, tr := range allTransforms(t) {
		if tr.Scheme() == SchemePlain {
			continue
		}
		_, err := tr.Match(PlainText("pw"), Material{Scheme: tr.Scheme(), Data: []byte("garbage")})
		require.True(t, errors.Is(err, InvalidSecretMaterial{}), "%v: %v", tr.Scheme(), err)
	}
}

func TestSecretboxNeedsTheSameKey(t *testing.T) {
	ctx := context.Background()
	a, err := Secretbox(ctx, testKeyFn(t), nil)
	require.NoError(t, err)
	b, err := Secretbox(ctx, testKeyFn(t), nil)
	require.NoError(t, err)
	m, err := a.Seal(PlainText("pw"))
	require.NoError(t, err)
	_, err = b.Match(PlainText("pw"), m)
	require.True(t, errors.Is(err, InvalidSecretMaterial{}))
}

func TestKeyFromEnv(t *testing.T) {
	val, err := GenerateKey(nil)
	require.NoError(t, err)
	os.Setenv(RootKeyEnvVar, val)
	keyfn, err := KeyFNFromEnv(RootKeyEnvVar, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if os.Getenv(RootKeyEnvVar) != "" {
		t.Fatal("reading the key should remove it from the environment")
	}
	k, err := keyfn(context.Background())
	require.NoError(t, err)
	expected, _ := ParseKey(val)
	require.Equal(t, *expected, *k)

	_, err = KeyFNFromEnv(RootKeyEnvVar, nil, nil)
	require.Error(t, err, "empty variable must not produce a key")
}

func TestDeriveIsPurposeBound(t *testing.T) {
	k, err := testKeyFn(t)(context.Background())
	require.NoError(t, err)
	a, err := k.Derive("a")
	require.NoError(t, err)
	b, err := k.Derive("b")
	require.NoError(t, err)
	again, err := k.Derive("a")
	require.NoError(t, err)
	require.NotEqual(t, *a, *b)
	require.Equal(t, *a, *again)
}

func TestMaterialStringHidesData(t *testing.T) {
	m := Material{Scheme: SchemePlain, Data: []byte("hunter2")}
	require.NotContains(t, m.String(), "hunter2")
}
