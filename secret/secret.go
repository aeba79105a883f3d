package secret

import (
	"crypto/rand"
	"fmt"
	"io"
)

type (
	PlainText []byte
	Scheme    string

	Material struct {
		Scheme Scheme
		Data   []byte
	}

	// Transform is the pair of operations a store needs to keep passwords:
	// Seal runs on registration, Match runs on every login attempt.
	Transform interface {
		Scheme() Scheme
		Seal(raw PlainText) (Material, error)
		Match(presented PlainText, stored Material) (bool, error)
	}
)

const (
	SchemePlain     = Scheme("plain")
	SchemeSecretbox = Scheme("secretbox")
	SchemeBcrypt    = Scheme("bcrypt")
	SchemeArgon2id  = Scheme("argon2id")
)

func (p PlainText) Zero() {
	for i := range p {
		p[i] = 0
	}
}

func (m Material) IsZero() bool {
	return m.Scheme == "" && len(m.Data) == 0
}

// String never prints the data, only how it was produced
func (m Material) String() string {
	if m.IsZero() {
		return "material(none)"
	}
	return fmt.Sprintf("material(%v, %d bytes)", m.Scheme, len(m.Data))
}

// RandomPlainText returns n random bytes, used to build decoys.
func RandomPlainText(entropy io.Reader, n int) (PlainText, error) {
	if entropy == nil {
		entropy = rand.Reader
	}
	buf := make(PlainText, n)
	if _, err := io.ReadFull(entropy, buf); err != nil {
		return nil, fmt.Errorf("secret: unable to read random bytes, cause %w", err)
	}
	return buf, nil
}

func checkScheme(t Transform, m Material) error {
	if m.Scheme != t.Scheme() {
		return InvalidSecretMaterial{Scheme: m.Scheme, cause: fmt.Errorf("expecting scheme %v", t.Scheme())}
	}
	return nil
}
