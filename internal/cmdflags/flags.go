package cmdflags

import (
	"time"

	"github.com/andrebq/secrets/secret"
	"github.com/urfave/cli/v2"
)

func Bind(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "localhost:3000"
	}
	return &cli.StringFlag{
		Name:        "bind",
		Usage:       "Address to bind the http server",
		EnvVars:     []string{"PORT"},
		Value:       *out,
		Destination: out,
	}
}

func Variant(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "hashed"
	}
	return &cli.StringFlag{
		Name:        "variant",
		Usage:       "How credentials are kept: plaintext, encrypted, hashed or federated",
		EnvVars:     []string{"SECRETS_VARIANT"},
		Value:       *out,
		Destination: out,
	}
}

func Store(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "sqlite"
	}
	return &cli.StringFlag{
		Name:        "store",
		Usage:       "Credential store backend: sqlite or mongo",
		EnvVars:     []string{"SECRETS_STORE"},
		Value:       *out,
		Destination: out,
	}
}

func Database(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "."
	}
	return &cli.StringFlag{
		Name:        "db",
		Usage:       "Directory holding the sqlite database",
		EnvVars:     []string{"SECRETS_DB"},
		Value:       *out,
		Destination: out,
	}
}

func MongoURI(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "mongo-uri",
		Usage:       "MongoDB connection string, overrides SECRETS_MONGO_URI",
		EnvVars:     []string{"MONGO_URI"},
		Value:       *out,
		Destination: out,
	}
}

func RootKeyEnvVar(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = secret.RootKeyEnvVar
	}
	return &cli.StringFlag{
		Name:        "root-key-envvar-name",
		Usage:       "Name of the environment variable that holds the root key. The key itself should not be passed as an argument",
		Value:       *out,
		Destination: out,
	}
}

func SessionTTL(out *time.Duration) cli.Flag {
	return &cli.DurationFlag{
		Name:        "session-ttl",
		Usage:       "How long a session lasts after login",
		EnvVars:     []string{"SECRETS_SESSION_TTL"},
		Value:       *out,
		Destination: out,
	}
}

func StoreTimeout(out *time.Duration) cli.Flag {
	if *out == 0 {
		*out = time.Second * 5
	}
	return &cli.DurationFlag{
		Name:        "store-timeout",
		Usage:       "Upper bound for a single credential store call",
		EnvVars:     []string{"SECRETS_STORE_TIMEOUT"},
		Value:       *out,
		Destination: out,
	}
}

func AllowHTTPCookie(out *bool) cli.Flag {
	return &cli.BoolFlag{
		Name:        "allow-http-cookie",
		Usage:       "Send session cookies without the Secure attribute (local development only)",
		EnvVars:     []string{"SECRETS_ALLOW_HTTP_COOKIE"},
		Value:       *out,
		Destination: out,
	}
}

func Hash(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = string(secret.SchemeBcrypt)
	}
	return &cli.StringFlag{
		Name:        "hash",
		Usage:       "One-way scheme for the hashed and federated variants: bcrypt or argon2id",
		EnvVars:     []string{"SECRETS_HASH"},
		Value:       *out,
		Destination: out,
	}
}

func LogLevel(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "info"
	}
	return &cli.StringFlag{
		Name:        "log-level",
		Usage:       "Minimum log level (trace, debug, info, warn, error)",
		EnvVars:     []string{"LOG_LEVEL"},
		Value:       *out,
		Destination: out,
	}
}

func LogPretty(out *bool) cli.Flag {
	return &cli.BoolFlag{
		Name:        "log-pretty",
		Usage:       "Human friendly console logs instead of JSON",
		Value:       *out,
		Destination: out,
	}
}
