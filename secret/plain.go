package secret

import "crypto/subtle"

type (
	plain struct{}
)

// Plain keeps passwords verbatim.
func Plain() Transform {
	return plain{}
}

func (plain) Scheme() Scheme { return SchemePlain }

func (plain) Seal(raw PlainText) (Material, error) {
	data := make([]byte, len(raw))
	copy(data, raw)
	return Material{Scheme: SchemePlain, Data: data}, nil
}

func (p plain) Match(presented PlainText, stored Material) (bool, error) {
	if err := checkScheme(p, stored); err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(presented, stored.Data) == 1, nil
}
