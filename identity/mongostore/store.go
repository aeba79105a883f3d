// Package mongostore keeps identity records in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andrebq/secrets/identity"
	"github.com/andrebq/secrets/secret"
	"github.com/caarlos0/env/v7"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionName = "users"
)

type (
	// Config defines the options that are used when connecting to a MongoDB instance.
	Config struct {
		URI  string `env:"URI"  envDefault:"mongodb://localhost:27017"`
		Name string `env:"NAME" envDefault:"secrets"`
	}

	Store struct {
		client *mongo.Client
		coll   *mongo.Collection
		now    func() time.Time
	}

	document struct {
		ID              string `bson:"_id"`
		Identifier      string `bson:"email,omitempty"`
		Scheme          string `bson:"scheme,omitempty"`
		Material        []byte `bson:"password,omitempty"`
		Provider        string `bson:"provider,omitempty"`
		ExternalSubject string `bson:"googleId,omitempty"`
		Note            string `bson:"secret,omitempty"`
		CreatedAt       int64  `bson:"createdAt"`
		UpdatedAt       int64  `bson:"updatedAt"`
	}
)

var _ identity.Store = (*Store)(nil)

// ConfigFromEnv loads Config from variables named prefix+URI and prefix+NAME.
func ConfigFromEnv(prefix string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg, env.Options{Prefix: prefix}); err != nil {
		return Config{}, fmt.Errorf("unable to load mongodb configuration, cause %w", err)
	}
	return cfg, nil
}

// Connect creates a connection to the MongoDB instance and makes sure the
// unique indexes exist.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to mongodb, cause %w", err)
	}
	s := &Store{
		client: client,
		coll:   client.Database(cfg.Name).Collection(collectionName),
		now:    time.Now,
	}
	if err := s.init(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to init mongodb collection %v, cause %w", collectionName, err)
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uidx_email"),
		},
		{
			Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "googleId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uidx_provider_subject"),
		},
		{
			Keys:    bson.D{{Key: "secret", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("idx_secret"),
		},
	})
	return err
}

func (s *Store) FindOne(ctx context.Context, f identity.Filter) (identity.Record, error) {
	var doc document
	err := s.coll.FindOne(ctx, filter(f)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return identity.Record{}, identity.NotFound{}
	} else if err != nil {
		return identity.Record{}, identity.Unavailable("find identity", err)
	}
	return doc.record(), nil
}

func (s *Store) FindMany(ctx context.Context, f identity.Filter) ([]identity.Record, error) {
	cur, err := s.coll.Find(ctx, filter(f), options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, identity.Unavailable("list identities", err)
	}
	defer cur.Close(ctx)
	var out []identity.Record
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return nil, identity.Unavailable("list identities", err)
		}
		out = append(out, doc.record())
	}
	if err := cur.Err(); err != nil {
		return nil, identity.Unavailable("list identities", err)
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, r identity.Record) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	doc := s.document(r)
	_, err := s.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return "", identity.DuplicateIdentity{Identifier: r.Identifier}
	} else if err != nil {
		return "", identity.Unavailable("insert identity", err)
	}
	return doc.ID, nil
}

func (s *Store) Update(ctx context.Context, id string, c identity.Changes) error {
	if c.Note == nil {
		return nil
	}
	set := bson.D{{Key: "updatedAt", Value: s.now().UnixNano()}}
	var update bson.D
	if *c.Note == "" {
		update = bson.D{{Key: "$set", Value: set}, {Key: "$unset", Value: bson.D{{Key: "secret", Value: ""}}}}
	} else {
		set = append(set, bson.E{Key: "secret", Value: *c.Note})
		update = bson.D{{Key: "$set", Value: set}}
	}
	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	if err != nil {
		return identity.Unavailable("update identity", err)
	}
	if res.MatchedCount < 1 {
		return identity.NotFound{}
	}
	return nil
}

func (s *Store) FindOrInsert(ctx context.Context, r identity.Record) (identity.Record, bool, error) {
	if r.ExternalSubject == "" {
		return identity.Record{}, false, identity.InvalidRecord{Reason: "find or insert requires an external subject"}
	}
	if err := r.Validate(); err != nil {
		return identity.Record{}, false, err
	}
	doc := s.document(r)
	sel := bson.D{{Key: "provider", Value: r.Provider}, {Key: "googleId", Value: r.ExternalSubject}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var found document
	err := s.coll.FindOneAndUpdate(ctx, sel, bson.D{{Key: "$setOnInsert", Value: doc}}, opts).Decode(&found)
	if mongo.IsDuplicateKeyError(err) {
		// two upserts raced, the loser reads what the winner wrote
		err = s.coll.FindOne(ctx, sel).Decode(&found)
	}
	if err != nil {
		return identity.Record{}, false, identity.Unavailable("insert federated identity", err)
	}
	return found.record(), found.ID == doc.ID, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return identity.Unavailable("ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *Store) document(r identity.Record) document {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := s.now().UnixNano()
	return document{
		ID:              r.ID,
		Identifier:      r.Identifier,
		Scheme:          string(r.Material.Scheme),
		Material:        r.Material.Data,
		Provider:        r.Provider,
		ExternalSubject: r.ExternalSubject,
		Note:            r.Note,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (d document) record() identity.Record {
	r := identity.Record{
		ID:              d.ID,
		Identifier:      d.Identifier,
		Provider:        d.Provider,
		ExternalSubject: d.ExternalSubject,
		Note:            d.Note,
		CreatedAt:       time.Unix(0, d.CreatedAt),
		UpdatedAt:       time.Unix(0, d.UpdatedAt),
	}
	if d.Scheme != "" || len(d.Material) > 0 {
		r.Material = secret.Material{Scheme: secret.Scheme(d.Scheme), Data: d.Material}
	}
	return r
}

func filter(f identity.Filter) bson.D {
	out := bson.D{}
	if f.ID != "" {
		out = append(out, bson.E{Key: "_id", Value: f.ID})
	}
	if f.Identifier != "" {
		out = append(out, bson.E{Key: "email", Value: f.Identifier})
	}
	if f.Provider != "" {
		out = append(out, bson.E{Key: "provider", Value: f.Provider})
	}
	if f.ExternalSubject != "" {
		out = append(out, bson.E{Key: "googleId", Value: f.ExternalSubject})
	}
	if f.WithNote {
		out = append(out, bson.E{Key: "secret", Value: bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: ""}}})
	}
	return out
}
