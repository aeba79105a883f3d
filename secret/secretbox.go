package secret

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	nonceSize = 24

	fieldEncryptionPurpose = "secrets/field-encryption/v1"
)

type (
	sealed struct {
		key     [32]byte
		entropy io.Reader
	}
)

var (
	errCannotOpen = errors.New("secretbox cannot be opened with the current key")
)

// Secretbox returns a reversible transform, the stored material is the
// password sealed with NaCl secretbox under a key derived from the root key.
func Secretbox(ctx context.Context, keyfn KeyFn, entropy io.Reader) (Transform, error) {
	root, err := keyfn(ctx)
	if err != nil {
		return nil, fmt.Errorf("secret: unable to acquire root key, cause %w", err)
	}
	defer root.Zero()
	derived, err := root.Derive(fieldEncryptionPurpose)
	if err != nil {
		return nil, err
	}
	defer derived.Zero()
	if entropy == nil {
		entropy = rand.Reader
	}
	s := &sealed{entropy: entropy}
	copy(s.key[:], derived[:])
	return s, nil
}

func (s *sealed) Scheme() Scheme { return SchemeSecretbox }

func (s *sealed) Seal(raw PlainText) (Material, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(s.entropy, nonce[:]); err != nil {
		return Material{}, fmt.Errorf("secret: unable to generate nonce, cause %w", err)
	}
	out := secretbox.Seal(nonce[:], raw, &nonce, &s.key)
	return Material{Scheme: SchemeSecretbox, Data: out}, nil
}

func (s *sealed) Match(presented PlainText, stored Material) (bool, error) {
	if err := checkScheme(s, stored); err != nil {
		return false, err
	}
	opened, err := s.open(stored)
	if err != nil {
		return false, err
	}
	defer opened.Zero()
	return subtle.ConstantTimeCompare(presented, opened) == 1, nil
}

func (s *sealed) open(m Material) (PlainText, error) {
	if len(m.Data) < nonceSize+secretbox.Overhead {
		return nil, InvalidSecretMaterial{Scheme: m.Scheme, cause: errors.New("sealed data is too short")}
	}
	var nonce [nonceSize]byte
	copy(nonce[:], m.Data[:nonceSize])
	out, ok := secretbox.Open(nil, m.Data[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, InvalidSecretMaterial{Scheme: m.Scheme, cause: errCannotOpen}
	}
	return PlainText(out), nil
}
