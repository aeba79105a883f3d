package mongostore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/andrebq/secrets/identity"
	"github.com/andrebq/secrets/secret"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFilter(t *testing.T) {
	require.Equal(t, bson.D{}, filter(identity.Filter{}))
	require.Equal(t, bson.D{
		{Key: "email", Value: "a@x.com"},
	}, filter(identity.Filter{Identifier: "a@x.com"}))
	require.Equal(t, bson.D{
		{Key: "provider", Value: "google"},
		{Key: "googleId", Value: "42"},
	}, filter(identity.Filter{Provider: "google", ExternalSubject: "42"}))
}

func TestDocumentRoundTrip(t *testing.T) {
	s := &Store{now: func() time.Time { return time.Unix(10, 0) }}
	doc := s.document(identity.Record{
		Identifier: "a@x.com",
		Material:   secret.Material{Scheme: secret.SchemeBcrypt, Data: []byte("$2a$...")},
	})
	require.NotEmpty(t, doc.ID)
	r := doc.record()
	require.Equal(t, "a@x.com", r.Identifier)
	require.Equal(t, secret.SchemeBcrypt, r.Material.Scheme)
	require.Equal(t, time.Unix(10, 0), r.CreatedAt)

	fed := s.document(identity.Record{Provider: "google", ExternalSubject: "1"}).record()
	require.False(t, fed.HasPassword())
}

// TestAgainstServer runs only when SECRETS_TEST_MONGO_URI points to a
// disposable server.
func TestAgainstServer(t *testing.T) {
	uri := os.Getenv("SECRETS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SECRETS_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := Connect(ctx, Config{URI: uri, Name: "secrets_test_" + uuid.NewString()[:8]})
	require.NoError(t, err)
	defer func() {
		s.coll.Database().Drop(ctx)
		s.Close()
	}()

	_, err = s.Insert(ctx, identity.Record{Identifier: "a@x.com", Material: secret.Material{Scheme: secret.SchemePlain, Data: []byte("pw")}})
	require.NoError(t, err)
	_, err = s.Insert(ctx, identity.Record{Identifier: "a@x.com", Material: secret.Material{Scheme: secret.SchemePlain, Data: []byte("pw")}})
	require.True(t, errors.Is(err, identity.DuplicateIdentity{}))

	first, created, err := s.FindOrInsert(ctx, identity.Record{Provider: "google", ExternalSubject: "7"})
	require.NoError(t, err)
	require.True(t, created)
	second, created, err := s.FindOrInsert(ctx, identity.Record{Provider: "google", ExternalSubject: "7"})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)

	require.NoError(t, s.Update(ctx, first.ID, identity.NoteChange("hello")))
	notes, err := s.FindMany(ctx, identity.Filter{WithNote: true})
	require.NoError(t, err)
	require.Len(t, notes, 1)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("TESTMONGO_URI", "mongodb://db:27017")
	cfg, err := ConfigFromEnv("TESTMONGO_")
	require.NoError(t, err)
	require.Equal(t, "mongodb://db:27017", cfg.URI)
	require.Equal(t, "secrets", cfg.Name)
}
