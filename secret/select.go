package secret

import (
	"context"
	"io"
)

type (
	Options struct {
		KeyFn      KeyFn
		Entropy    io.Reader
		BcryptCost int
		Argon2     Argon2Params
	}
)

func ParseScheme(name string) (Scheme, error) {
	switch s := Scheme(name); s {
	case SchemePlain, SchemeSecretbox, SchemeBcrypt, SchemeArgon2id:
		return s, nil
	}
	return "", UnknownScheme{Name: name}
}

// New builds the transform for scheme. Only secretbox needs a KeyFn.
func New(ctx context.Context, scheme Scheme, opts Options) (Transform, error) {
	switch scheme {
	case SchemePlain:
		return Plain(), nil
	case SchemeSecretbox:
		return Secretbox(ctx, opts.KeyFn, opts.Entropy)
	case SchemeBcrypt:
		return Bcrypt(opts.BcryptCost), nil
	case SchemeArgon2id:
		return Argon2id(opts.Argon2, opts.Entropy), nil
	}
	return nil, UnknownScheme{Name: string(scheme)}
}
