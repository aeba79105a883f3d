package users

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/andrebq/secrets/auth"
	"github.com/andrebq/secrets/identity"
	"github.com/andrebq/secrets/internal/cmdflags"
	"github.com/andrebq/secrets/internal/wire"
	"github.com/andrebq/secrets/secret"
	"github.com/andrebq/secrets/webapp"
	"github.com/urfave/cli/v2"
)

type (
	env struct {
		store     identity.Store
		transform secret.Transform
		close     func() error
	}
)

func Cmd() *cli.Command {
	var e env
	var variantName string
	var storeKind string
	var dbDir string
	var mongoURI string
	var rootKeyEnvVar string
	var hashName string
	var storeTimeout time.Duration
	return &cli.Command{
		Name:  "users",
		Usage: "Manage local identities without going through the website",
		Flags: []cli.Flag{
			cmdflags.Variant(&variantName),
			cmdflags.Store(&storeKind),
			cmdflags.Database(&dbDir),
			cmdflags.MongoURI(&mongoURI),
			cmdflags.RootKeyEnvVar(&rootKeyEnvVar),
			cmdflags.Hash(&hashName),
			cmdflags.StoreTimeout(&storeTimeout),
		},
		Before: func(ctx *cli.Context) error {
			variant, err := webapp.ParseVariant(variantName)
			if err != nil {
				return err
			}
			hash, err := secret.ParseScheme(hashName)
			if err != nil {
				return err
			}
			scheme := variant.Scheme(hash)
			var keyfn secret.KeyFn
			if wire.NeedsKey(scheme) {
				keyfn, err = wire.RootKey(rootKeyEnvVar)
				if err != nil {
					return err
				}
			}
			e.transform, err = wire.Transform(ctx.Context, scheme, keyfn)
			if err != nil {
				return err
			}
			e.store, e.close, err = wire.OpenStore(ctx.Context, wire.StoreOptions{
				Kind:     storeKind,
				Dir:      dbDir,
				MongoURI: mongoURI,
				Timeout:  storeTimeout,
			})
			return err
		},
		After: func(ctx *cli.Context) error {
			if e.close == nil {
				return nil
			}
			return e.close()
		},
		Subcommands: []*cli.Command{
			registerCmd(&e),
			verifyCmd(&e),
		},
	}
}

func registerCmd(e *env) *cli.Command {
	var username string
	return &cli.Command{
		Name:  "register",
		Usage: "Register a new identity (password is read from stdin)",
		Flags: []cli.Flag{usernameFlag(&username)},
		Action: func(ctx *cli.Context) error {
			password, err := readPassword(ctx.App.Reader)
			if err != nil {
				return err
			}
			defer password.Zero()
			id, err := auth.NewRegistrar(e.store, e.transform).Register(ctx.Context, username, password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(ctx.App.Writer, id)
			return err
		},
	}
}

func verifyCmd(e *env) *cli.Command {
	var username string
	return &cli.Command{
		Name:  "verify",
		Usage: "Check a password against the stored credential (password is read from stdin)",
		Flags: []cli.Flag{usernameFlag(&username)},
		Action: func(ctx *cli.Context) error {
			password, err := readPassword(ctx.App.Reader)
			if err != nil {
				return err
			}
			defer password.Zero()
			verifier, err := auth.NewVerifier(e.store, e.transform)
			if err != nil {
				return err
			}
			id, err := verifier.Verify(ctx.Context, username, password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(ctx.App.Writer, id)
			return err
		},
	}
}

func usernameFlag(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "username",
		Aliases:     []string{"u", "user"},
		Usage:       "Identifier of the user",
		Destination: out,
		Required:    true,
	}
}

func readPassword(in io.Reader) (secret.PlainText, error) {
	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		if sc.Err() != nil {
			return nil, sc.Err()
		}
		return nil, errors.New("missing password from stdin")
	}
	password := strings.TrimSpace(sc.Text())
	if len(password) == 0 {
		return nil, errors.New("missing password from stdin")
	}
	return secret.PlainText(password), nil
}
