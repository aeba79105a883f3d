package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/andrebq/secrets/federated"
	"golang.org/x/oauth2"
	googleoauth2 "golang.org/x/oauth2/google"
)

const (
	providerName = "google"
	userInfoURL  = "https://www.googleapis.com/oauth2/v3/userinfo"
	maxBody      = 1 << 20
)

var scopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

var _ federated.Provider = (*provider)(nil)

type (
	provider struct {
		config      *oauth2.Config
		userInfoURL string
	}

	Option func(*provider)
)

// WithEndpoints points the provider to other servers, used by tests.
func WithEndpoints(endpoint oauth2.Endpoint, userInfo string) Option {
	return func(p *provider) {
		p.config.Endpoint = endpoint
		p.userInfoURL = userInfo
	}
}

// NewProvider returns a new Google OAuth provider.
func NewProvider(cfg federated.Config, opts ...Option) federated.Provider {
	p := &provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     googleoauth2.Endpoint,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       scopes,
		},
		userInfoURL: userInfoURL,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *provider) Name() string {
	return providerName
}

func (p *provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *provider) Exchange(ctx context.Context, code string) (federated.Profile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return federated.Profile{}, fmt.Errorf("google: unable to exchange code, cause %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return federated.Profile{}, err
	}
	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return federated.Profile{}, fmt.Errorf("google: unable to fetch user info, cause %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return federated.Profile{}, federated.ErrDenied
	}
	var user struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&user); err != nil {
		return federated.Profile{}, fmt.Errorf("google: unable to decode user info, cause %w", err)
	}
	if user.Sub == "" {
		return federated.Profile{}, federated.ErrDenied
	}
	return federated.Profile{
		Subject: user.Sub,
		Email:   user.Email,
		Name:    user.Name,
		Picture: user.Picture,
	}, nil
}
