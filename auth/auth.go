// Package auth turns submitted credentials into identity ids.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/andrebq/secrets/identity"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/secret"
)

const (
	MaxIdentifierLen = 320
	MaxSecretLen     = 72
)

type (
	Verifier struct {
		store     identity.Store
		transform secret.Transform
		decoy     secret.Material
	}

	Registrar struct {
		store     identity.Store
		transform secret.Transform
	}

	Resolver struct {
		store identity.Store
	}

	InvalidInput struct {
		Field  string
		Reason string
	}
)

var (
	// ErrRejected is the only answer a caller gets for a failed login,
	// no matter if the identifier exists or not.
	ErrRejected = errors.New("not authenticated")
)

func (i InvalidInput) Error() string {
	return fmt.Sprintf("invalid %v: %v", i.Field, i.Reason)
}

func NewVerifier(store identity.Store, transform secret.Transform) (*Verifier, error) {
	raw, err := secret.RandomPlainText(nil, 16)
	if err != nil {
		return nil, err
	}
	defer raw.Zero()
	decoy, err := transform.Seal(raw)
	if err != nil {
		return nil, fmt.Errorf("auth: unable to prepare decoy material, cause %w", err)
	}
	return &Verifier{store: store, transform: transform, decoy: decoy}, nil
}

// Verify returns the identity id when presented matches what is stored for
// identifier. Every failed check returns ErrRejected, store failures are
// returned as they are so the request can be aborted.
func (v *Verifier) Verify(ctx context.Context, identifier string, presented secret.PlainText) (string, error) {
	log := logutil.GetOrDefault(ctx)
	identifier = strings.TrimSpace(identifier)
	// bcrypt ignores everything past MaxSecretLen, longer input never matches
	if identifier == "" || len(presented) > MaxSecretLen {
		return "", v.reject(presented)
	}
	rec, err := v.store.FindOne(ctx, identity.Filter{Identifier: identifier})
	if errors.Is(err, identity.NotFound{}) || (err == nil && !rec.HasPassword()) {
		return "", v.reject(presented)
	} else if err != nil {
		return "", err
	}
	ok, err := v.transform.Match(presented, rec.Material)
	if err != nil {
		log.Warn().Err(err).Str("identity", rec.ID).Msg("Stored secret material cannot be verified")
		return "", ErrRejected
	}
	if !ok {
		return "", ErrRejected
	}
	return rec.ID, nil
}

// reject spends the same effort as a real comparison.
func (v *Verifier) reject(presented secret.PlainText) error {
	v.transform.Match(presented, v.decoy)
	return ErrRejected
}

func NewRegistrar(store identity.Store, transform secret.Transform) *Registrar {
	return &Registrar{store: store, transform: transform}
}

// Register seals raw and stores a new local identity.
func (r *Registrar) Register(ctx context.Context, identifier string, raw secret.PlainText) (string, error) {
	identifier, err := CleanIdentifier(identifier)
	if err != nil {
		return "", err
	}
	if err := CheckSecret(raw); err != nil {
		return "", err
	}
	material, err := r.transform.Seal(raw)
	if err != nil {
		return "", err
	}
	id, err := r.store.Insert(ctx, identity.Record{
		Identifier: identifier,
		Material:   material,
	})
	if err != nil {
		return "", err
	}
	log := logutil.GetOrDefault(ctx)
	log.Info().Str("identity", id).Str("scheme", string(material.Scheme)).Msg("Identity registered")
	return id, nil
}

func NewResolver(store identity.Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveOrCreate returns the identity linked to (provider, subject),
// creating it on first use.
func (r *Resolver) ResolveOrCreate(ctx context.Context, provider, subject string) (string, error) {
	if provider == "" {
		return "", InvalidInput{Field: "provider", Reason: "must not be empty"}
	}
	if subject == "" {
		return "", InvalidInput{Field: "subject", Reason: "must not be empty"}
	}
	rec, created, err := r.store.FindOrInsert(ctx, identity.Record{
		Provider:        provider,
		ExternalSubject: subject,
	})
	if err != nil {
		return "", err
	}
	if created {
		log := logutil.GetOrDefault(ctx)
		log.Info().Str("identity", rec.ID).Str("provider", provider).Msg("Federated identity created")
	}
	return rec.ID, nil
}

// CleanIdentifier trims surrounding spaces, case is kept as typed.
func CleanIdentifier(identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	switch {
	case identifier == "":
		return "", InvalidInput{Field: "identifier", Reason: "must not be empty"}
	case len(identifier) > MaxIdentifierLen:
		return "", InvalidInput{Field: "identifier", Reason: "too long"}
	case !utf8.ValidString(identifier):
		return "", InvalidInput{Field: "identifier", Reason: "must be valid utf-8"}
	}
	return identifier, nil
}

func CheckSecret(raw secret.PlainText) error {
	switch {
	case len(raw) == 0:
		return InvalidInput{Field: "secret", Reason: "must not be empty"}
	case len(raw) > MaxSecretLen:
		return InvalidInput{Field: "secret", Reason: fmt.Sprintf("must have at most %v bytes", MaxSecretLen)}
	}
	return nil
}
