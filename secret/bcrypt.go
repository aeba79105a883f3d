package secret

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 10
)

type (
	bcryptHasher struct {
		cost int
	}
)

// Bcrypt returns a salted hash transform. Cost outside bcrypt limits falls
// back to DefaultBcryptCost.
func Bcrypt(cost int) Transform {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) Scheme() Scheme { return SchemeBcrypt }

func (b *bcryptHasher) Seal(raw PlainText) (Material, error) {
	hash, err := bcrypt.GenerateFromPassword(raw, b.cost)
	if err != nil {
		return Material{}, fmt.Errorf("secret: unable to hash password, cause %w", err)
	}
	return Material{Scheme: SchemeBcrypt, Data: hash}, nil
}

func (b *bcryptHasher) Match(presented PlainText, stored Material) (bool, error) {
	if err := checkScheme(b, stored); err != nil {
		return false, err
	}
	err := bcrypt.CompareHashAndPassword(stored.Data, presented)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, InvalidSecretMaterial{Scheme: stored.Scheme, cause: err}
	}
}
