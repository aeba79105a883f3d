package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andrebq/secrets/secret"
	"github.com/stretchr/testify/require"
)

type (
	slowStore struct {
		Store
	}
)

func (slowStore) Ping(ctx context.Context) error {
	<-ctx.Done()
	return Unavailable("ping", ctx.Err())
}

func TestValidate(t *testing.T) {
	material := secret.Material{Scheme: secret.SchemePlain, Data: []byte("pw")}
	for _, tc := range []struct {
		name  string
		rec   Record
		valid bool
	}{
		{"local", Record{Identifier: "a@x.com", Material: material}, true},
		{"federated", Record{Provider: "google", ExternalSubject: "g-1"}, true},
		{"empty", Record{}, false},
		{"local without material", Record{Identifier: "a@x.com"}, false},
		{"subject without provider", Record{ExternalSubject: "g-1"}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rec.Validate()
			if tc.valid {
				require.NoError(t, err)
				return
			}
			var invalid InvalidRecord
			require.True(t, errors.As(err, &invalid))
		})
	}
}

func TestWithTimeout(t *testing.T) {
	s := WithTimeout(slowStore{}, 10*time.Millisecond)
	err := s.Ping(context.Background())
	require.ErrorIs(t, err, StoreUnavailable{})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	var plain Store = slowStore{}
	require.Equal(t, plain, WithTimeout(plain, 0))
}
