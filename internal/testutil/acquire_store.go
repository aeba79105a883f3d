package testutil

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/andrebq/secrets/identity/sqlitestore"
	"github.com/andrebq/secrets/secret"
)

type (
	TestLog interface {
		Fatal(...interface{})
		Log(...interface{})
	}
)

func AcquireStore(ctx context.Context, t TestLog, name string) (*sqlitestore.Store, func()) {
	dir, err := ioutil.TempDir("", "secrets-tests")
	if err != nil {
		t.Fatal(err)
	}
	abspath := filepath.Join(dir, name)
	store, err := sqlitestore.Open(ctx, abspath)
	if err != nil {
		t.Fatal(err)
	}
	return store, func() {
		err := store.Close()
		if err != nil {
			t.Log("unable to close store", err)
		}
		err = os.RemoveAll(dir)
		if err != nil {
			t.Log("unable to cleanup temp dir", dir)
		}
	}
}

// RandomKey returns a KeyFn over a fresh root key.
func RandomKey(t TestLog) secret.KeyFn {
	val, err := secret.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	k, err := secret.ParseKey(val)
	if err != nil {
		t.Fatal(err)
	}
	return secret.StaticKey(k)
}
