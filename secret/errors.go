package secret

import "fmt"

type (
	InvalidSecretMaterial struct {
		Scheme Scheme
		cause  error
	}

	UnknownScheme struct {
		Name string
	}
)

func (i InvalidSecretMaterial) Error() string {
	if i.cause == nil {
		return fmt.Sprintf("stored secret material with scheme %q cannot be used", i.Scheme)
	}
	return fmt.Sprintf("stored secret material with scheme %q cannot be used, cause %v", i.Scheme, i.cause)
}

func (i InvalidSecretMaterial) Unwrap() error {
	return i.cause
}

func (i InvalidSecretMaterial) Is(target error) bool {
	_, ok := target.(InvalidSecretMaterial)
	return ok
}

func (u UnknownScheme) Error() string {
	return fmt.Sprintf("unknown secret scheme %q", u.Name)
}
