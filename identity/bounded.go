package identity

import (
	"context"
	"time"
)

type (
	bounded struct {
		Store
		timeout time.Duration
	}
)

// Validate checks the shape expected by every backend before an insert.
func (r Record) Validate() error {
	switch {
	case r.Identifier == "" && r.ExternalSubject == "":
		return InvalidRecord{Reason: "record needs an identifier or an external subject"}
	case r.Identifier != "" && r.Material.IsZero():
		return InvalidRecord{Reason: "local identities need secret material"}
	case r.ExternalSubject != "" && r.Provider == "":
		return InvalidRecord{Reason: "external subject without provider"}
	}
	return nil
}

// WithTimeout bounds every call to s by d. A zero d returns s unchanged.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 {
		return s
	}
	return &bounded{Store: s, timeout: d}
}

func (b *bounded) FindOne(ctx context.Context, f Filter) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Store.FindOne(ctx, f)
}

func (b *bounded) FindMany(ctx context.Context, f Filter) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Store.FindMany(ctx, f)
}

func (b *bounded) Insert(ctx context.Context, r Record) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Store.Insert(ctx, r)
}

func (b *bounded) Update(ctx context.Context, id string, c Changes) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Store.Update(ctx, id, c)
}

func (b *bounded) FindOrInsert(ctx context.Context, r Record) (Record, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Store.FindOrInsert(ctx, r)
}

func (b *bounded) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Store.Ping(ctx)
}
