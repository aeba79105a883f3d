// Package identity defines the identity record and the store that keeps it.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/andrebq/secrets/secret"
)

type (
	Record struct {
		ID              string
		Identifier      string
		Material        secret.Material
		Provider        string
		ExternalSubject string
		Note            string
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	// Filter selects records by equality on the non-empty fields.
	// An empty Filter matches everything.
	Filter struct {
		ID              string
		Identifier      string
		Provider        string
		ExternalSubject string
		WithNote        bool
	}

	Changes struct {
		Note *string
	}

	Store interface {
		FindOne(ctx context.Context, f Filter) (Record, error)
		FindMany(ctx context.Context, f Filter) ([]Record, error)
		Insert(ctx context.Context, r Record) (string, error)
		Update(ctx context.Context, id string, c Changes) error
		// FindOrInsert looks up a record by (Provider, ExternalSubject) and
		// inserts r when none exists, in a single atomic step.
		FindOrInsert(ctx context.Context, r Record) (Record, bool, error)
		Ping(ctx context.Context) error
		Close() error
	}
)

// Federated reports if the record came from a third party sign-in
func (r Record) Federated() bool {
	return r.ExternalSubject != ""
}

// HasPassword reports if the record can log in with a local password.
func (r Record) HasPassword() bool {
	return !r.Material.IsZero()
}

// Public returns a copy of r without any secret material.
func (r Record) Public() Record {
	r.Material = secret.Material{}
	return r
}

func (r Record) String() string {
	return fmt.Sprintf("identity(%v)", r.ID)
}

func (f Filter) IsZero() bool {
	return f == Filter{}
}

func NoteChange(note string) Changes {
	return Changes{Note: &note}
}
