// Package wire builds the long lived dependencies shared by the commands.
package wire

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/andrebq/secrets/identity"
	"github.com/andrebq/secrets/identity/mongostore"
	"github.com/andrebq/secrets/identity/sqlitestore"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/secret"
)

const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"

	mongoEnvPrefix = "SECRETS_MONGO_"
)

type (
	StoreOptions struct {
		Kind     string
		Dir      string
		MongoURI string
		Timeout  time.Duration
	}
)

// OpenStore returns the configured credential store, bounded by
// opts.Timeout, and a function that releases it.
func OpenStore(ctx context.Context, opts StoreOptions) (identity.Store, func() error, error) {
	log := logutil.GetOrDefault(ctx)
	var s identity.Store
	switch opts.Kind {
	case StoreSQLite, "":
		st, err := sqlitestore.Open(ctx, opts.Dir)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("dir", opts.Dir).Msg("Using sqlite credential store")
		s = st
	case StoreMongo:
		cfg, err := mongostore.ConfigFromEnv(mongoEnvPrefix)
		if err != nil {
			return nil, nil, err
		}
		if opts.MongoURI != "" {
			cfg.URI = opts.MongoURI
		}
		st, err := mongostore.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("database", cfg.Name).Msg("Using mongodb credential store")
		s = st
	default:
		return nil, nil, fmt.Errorf("unknown store %q, expecting sqlite or mongo", opts.Kind)
	}
	closeFn := s.Close
	if opts.Timeout > 0 {
		s = identity.WithTimeout(s, opts.Timeout)
	}
	return s, closeFn, nil
}

// RootKey reads the root key from keyVar, the variable is cleared afterwards.
func RootKey(keyVar string) (secret.KeyFn, error) {
	return secret.KeyFNFromEnv(keyVar, os.Getenv, os.Setenv)
}

// NeedsKey reports if scheme can only be built with a root key.
func NeedsKey(scheme secret.Scheme) bool {
	return scheme == secret.SchemeSecretbox
}

func Transform(ctx context.Context, scheme secret.Scheme, keyfn secret.KeyFn) (secret.Transform, error) {
	if NeedsKey(scheme) && keyfn == nil {
		return nil, fmt.Errorf("scheme %v requires a root key", scheme)
	}
	return secret.New(ctx, scheme, secret.Options{KeyFn: keyfn})
}
