package serve

import (
	"errors"
	"time"

	"github.com/andrebq/secrets/auth"
	"github.com/andrebq/secrets/federated"
	"github.com/andrebq/secrets/federated/google"
	"github.com/andrebq/secrets/internal/cmdflags"
	"github.com/andrebq/secrets/internal/httpserver"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/internal/wire"
	"github.com/andrebq/secrets/secret"
	"github.com/andrebq/secrets/session"
	"github.com/andrebq/secrets/webapp"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	var bindAddr string
	var variantName string
	var storeKind string
	var dbDir string
	var mongoURI string
	var rootKeyEnvVar string
	var hashName string
	var allowHTTPCookie bool
	sessionTTL := session.DefaultTTL
	var storeTimeout time.Duration
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the secrets website",
		Flags: []cli.Flag{
			cmdflags.Bind(&bindAddr),
			cmdflags.Variant(&variantName),
			cmdflags.Store(&storeKind),
			cmdflags.Database(&dbDir),
			cmdflags.MongoURI(&mongoURI),
			cmdflags.RootKeyEnvVar(&rootKeyEnvVar),
			cmdflags.Hash(&hashName),
			cmdflags.AllowHTTPCookie(&allowHTTPCookie),
			cmdflags.SessionTTL(&sessionTTL),
			cmdflags.StoreTimeout(&storeTimeout),
		},
		Action: func(ctx *cli.Context) error {
			log := logutil.GetOrDefault(ctx.Context)
			variant, err := webapp.ParseVariant(variantName)
			if err != nil {
				return err
			}
			hash, err := secret.ParseScheme(hashName)
			if err != nil {
				return err
			}
			store, closeStore, err := wire.OpenStore(ctx.Context, wire.StoreOptions{
				Kind:     storeKind,
				Dir:      dbDir,
				MongoURI: mongoURI,
				Timeout:  storeTimeout,
			})
			if err != nil {
				return err
			}
			defer closeStore()

			// sessions are signed with a key derived from the root key, every variant needs it
			keyfn, err := wire.RootKey(rootKeyEnvVar)
			if err != nil {
				return err
			}
			transform, err := wire.Transform(ctx.Context, variant.Scheme(hash), keyfn)
			if err != nil {
				return err
			}
			verifier, err := auth.NewVerifier(store, transform)
			if err != nil {
				return err
			}
			tokens, err := session.InMemoryTokenStore(ctx.Context, sessionTTL)
			if err != nil {
				return err
			}
			sessions, err := session.NewManager(ctx.Context, keyfn, tokens, session.Config{
				TTL:            sessionTTL,
				InsecureCookie: allowHTTPCookie,
			})
			if err != nil {
				return err
			}
			cfg := webapp.Config{
				Variant:        variant,
				Store:          store,
				Verifier:       verifier,
				Registrar:      auth.NewRegistrar(store, transform),
				Sessions:       sessions,
				InsecureCookie: allowHTTPCookie,
			}
			if variant.Federated() {
				gcfg, err := federated.ConfigFromEnv("GOOGLE_")
				if err != nil {
					return err
				}
				if !gcfg.Enabled() {
					return errors.New("federated variant requires GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
				}
				cfg.Resolver = auth.NewResolver(store)
				cfg.Provider = google.NewProvider(gcfg)
			}
			if allowHTTPCookie {
				log.Warn().Msg("Session cookies will be sent over plain http")
			}
			handler, err := webapp.AsHandler(ctx.Context, cfg)
			if err != nil {
				return err
			}
			log.Info().Str("variant", string(variant)).Str("scheme", string(transform.Scheme())).Msg("Serving secrets")
			return httpserver.Serve(ctx.Context, httpserver.DefaultConfig(bindAddr), handler)
		},
	}
}
