package identity

import "fmt"

type (
	NotFound struct{}

	DuplicateIdentity struct {
		Identifier string
	}

	StoreUnavailable struct {
		Op    string
		cause error
	}

	InvalidRecord struct {
		Reason string
	}
)

func (NotFound) Error() string {
	return "identity not found"
}

func (d DuplicateIdentity) Error() string {
	if d.Identifier == "" {
		return "identity already exists"
	}
	return fmt.Sprintf("identity %v already exists", d.Identifier)
}

func (d DuplicateIdentity) Is(target error) bool {
	_, ok := target.(DuplicateIdentity)
	return ok
}

func Unavailable(op string, cause error) StoreUnavailable {
	return StoreUnavailable{Op: op, cause: cause}
}

func (s StoreUnavailable) Error() string {
	return fmt.Sprintf("identity store unable to %v, cause %v", s.Op, s.cause)
}

func (s StoreUnavailable) Unwrap() error {
	return s.cause
}

func (s StoreUnavailable) Is(target error) bool {
	_, ok := target.(StoreUnavailable)
	return ok
}

func (i InvalidRecord) Error() string {
	return fmt.Sprintf("invalid identity record: %v", i.Reason)
}
