package webapp

import (
	"fmt"

	"github.com/andrebq/secrets/secret"
)

type (
	Variant string
)

const (
	VariantPlaintext = Variant("plaintext")
	VariantEncrypted = Variant("encrypted")
	VariantHashed    = Variant("hashed")
	VariantFederated = Variant("federated")
)

func ParseVariant(name string) (Variant, error) {
	switch v := Variant(name); v {
	case VariantPlaintext, VariantEncrypted, VariantHashed, VariantFederated:
		return v, nil
	}
	return "", fmt.Errorf("unknown variant %q, expecting one of plaintext, encrypted, hashed, federated", name)
}

// Scheme picks how passwords are kept; hash selects the one-way scheme used by
// the hashed and federated variants.
func (v Variant) Scheme(hash secret.Scheme) secret.Scheme {
	switch v {
	case VariantPlaintext:
		return secret.SchemePlain
	case VariantEncrypted:
		return secret.SchemeSecretbox
	}
	if hash == secret.SchemeArgon2id {
		return hash
	}
	return secret.SchemeBcrypt
}

func (v Variant) Federated() bool {
	return v == VariantFederated
}
