// Package federated talks to third party identity providers.
package federated

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/caarlos0/env/v7"
)

type (
	// Config is the configuration for an OAuth2 provider.
	Config struct {
		ClientID     string `env:"CLIENT_ID"     envDefault:""`
		ClientSecret string `env:"CLIENT_SECRET" envDefault:""`
		CallbackURL  string `env:"CALLBACK_URL"  envDefault:"http://localhost:3000/auth/google/secrets"`
	}

	// Profile is what the application keeps from a successful sign-in.
	Profile struct {
		Subject string
		Email   string
		Name    string
		Picture string
	}

	// Provider is the redirect based authorization code flow of one provider.
	Provider interface {
		Name() string
		AuthCodeURL(state string) string
		Exchange(ctx context.Context, code string) (Profile, error)
	}
)

var (
	ErrDenied = errors.New("identity provider did not authenticate the user")
)

func ConfigFromEnv(prefix string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg, env.Options{Prefix: prefix}); err != nil {
		return Config{}, fmt.Errorf("unable to load provider configuration, cause %w", err)
	}
	return cfg, nil
}

func (c Config) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// NewState returns a random value used to tie a callback to the browser
// that started the flow.
func NewState(entropy io.Reader) (string, error) {
	if entropy == nil {
		entropy = rand.Reader
	}
	var buf [24]byte
	if _, err := io.ReadFull(entropy, buf[:]); err != nil {
		return "", fmt.Errorf("federated: unable to generate state, cause %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}
