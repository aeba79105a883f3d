package secret

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
)

const (
	RootKeyEnvVar = "SECRETS_ROOT_KEY"
)

type (
	Key [32]byte

	KeyFn func(context.Context) (*Key, error)
)

func (k *Key) Zero() {
	for i := range k {
		k[i] = 0
	}
}

// Derive expands the key into a new one bound to purpose, so the same
// root key can seal passwords and sign sessions without the two ever sharing
// key material.
func (k *Key) Derive(purpose string) (*Key, error) {
	var out Key
	r := hkdf.New(sha256.New, k[:], nil, []byte(purpose))
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return nil, fmt.Errorf("secret: unable to derive key for %v, cause %w", purpose, err)
	}
	return &out, nil
}

func (k *Key) String() string {
	return "key(redacted)"
}

func GenerateKey(entropy io.Reader) (string, error) {
	if entropy == nil {
		entropy = rand.Reader
	}
	var k Key
	defer k.Zero()
	if _, err := io.ReadFull(entropy, k[:]); err != nil {
		return "", fmt.Errorf("secret: unable to generate key, cause %w", err)
	}
	return base64.StdEncoding.EncodeToString(k[:]), nil
}

func ParseKey(val string) (*Key, error) {
	var rootKey Key
	buf, err := base64.StdEncoding.DecodeString(val)
	if err != nil {
		return nil, fmt.Errorf("secret: cannot decode string to valid key, cause %v", err)
	}
	defer PlainText(buf).Zero()
	if len(buf) != len(rootKey) {
		return nil, fmt.Errorf("secret: decoded key has %v bytes expecting %v bytes", len(buf), len(rootKey))
	}
	copy(rootKey[:], buf)
	return &rootKey, nil
}

// KeyFNFromEnv reads the root key from varname and clears the variable
// right after, so child processes and /proc readers do not get a copy.
func KeyFNFromEnv(varname string, getfn func(string) string, setfn func(string, string) error) (KeyFn, error) {
	if getfn == nil {
		getfn = os.Getenv
	}
	if setfn == nil {
		setfn = os.Setenv
	}
	val := getfn(varname)
	setfn(varname, "")
	if len(val) == 0 {
		return nil, fmt.Errorf("secret: environment variable %v is empty", varname)
	}
	rootKey, err := ParseKey(val)
	if err != nil {
		return nil, err
	}
	return StaticKey(rootKey), nil
}

// StaticKey returns a KeyFn that hands out copies of k.
func StaticKey(k *Key) KeyFn {
	var held Key
	copy(held[:], k[:])
	return func(_ context.Context) (*Key, error) {
		var out Key
		copy(out[:], held[:])
		return &out, nil
	}
}
