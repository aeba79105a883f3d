// Package session binds authenticated identities to tokens held by clients.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/secret"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultTTL        = 24 * time.Hour
	DefaultCookieName = "secrets_session"

	signingPurpose = "secrets/session-signing/v1"
	issuer         = "secrets"
)

type (
	State struct {
		identityID string
	}

	Config struct {
		TTL            time.Duration
		CookieName     string
		InsecureCookie bool
		Entropy        io.Reader
		Now            func() time.Time
	}

	Manager struct {
		tokens  TokenStore
		signKey []byte
		cfg     Config
	}
)

var (
	errNoSessionID = errors.New("token without session id")
)

func Anonymous() State {
	return State{}
}

func Authenticated(identityID string) State {
	return State{identityID: identityID}
}

func (s State) IdentityID() (string, bool) {
	return s.identityID, s.identityID != ""
}

func (s State) IsAuthenticated() bool {
	return s.identityID != ""
}

func (s State) String() string {
	if !s.IsAuthenticated() {
		return "anonymous"
	}
	return fmt.Sprintf("authenticated(%v)", s.identityID)
}

func NewManager(ctx context.Context, keyfn secret.KeyFn, tokens TokenStore, cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.Entropy == nil {
		cfg.Entropy = rand.Reader
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	root, err := keyfn(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: unable to acquire root key, cause %w", err)
	}
	defer root.Zero()
	derived, err := root.Derive(signingPurpose)
	if err != nil {
		return nil, err
	}
	signKey := make([]byte, len(derived))
	copy(signKey, derived[:])
	derived.Zero()
	return &Manager{tokens: tokens, signKey: signKey, cfg: cfg}, nil
}

func (m *Manager) CookieName() string {
	return m.cfg.CookieName
}

// Establish mints a token bound to identityID, records the binding and, when
// w is not nil, hands the token to the client as a cookie.
func (m *Manager) Establish(ctx context.Context, w http.ResponseWriter, identityID string) (string, error) {
	if identityID == "" {
		return "", errors.New("session: cannot establish a session without identity")
	}
	sid, err := m.newSessionID()
	if err != nil {
		return "", err
	}
	now := m.cfg.Now()
	expires := now.Add(m.cfg.TTL)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   identityID,
		ID:        sid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}).SignedString(m.signKey)
	if err != nil {
		return "", fmt.Errorf("session: unable to sign token, cause %w", err)
	}
	if err := m.tokens.Save(ctx, sid, identityID, m.cfg.TTL); err != nil {
		return "", fmt.Errorf("session: unable to save binding, cause %w", err)
	}
	if w != nil {
		http.SetCookie(w, m.cookie(token, expires))
	}
	log := logutil.GetOrDefault(ctx)
	log.Debug().Str("identity", identityID).Msg("Session established")
	return token, nil
}

// Resolve never fails, anything that is not a valid and live token is
// Anonymous.
func (m *Manager) Resolve(ctx context.Context, token string) State {
	if token == "" {
		return Anonymous()
	}
	claims, err := m.parse(token)
	if err != nil {
		log := logutil.GetOrDefault(ctx)
		log.Debug().Err(err).Msg("Rejecting session token")
		return Anonymous()
	}
	bound, found, err := m.tokens.Lookup(ctx, claims.ID)
	if err != nil {
		log := logutil.GetOrDefault(ctx)
		log.Error().Err(err).Msg("Unexpected error when checking for token in token store")
		return Anonymous()
	}
	if !found || bound != claims.Subject {
		return Anonymous()
	}
	return Authenticated(bound)
}

func (m *Manager) FromRequest(r *http.Request) State {
	c, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return Anonymous()
	}
	return m.Resolve(r.Context(), c.Value)
}

// Terminate removes the binding behind token and clears the cookie. Unknown,
// expired or tampered tokens are ignored.
func (m *Manager) Terminate(ctx context.Context, w http.ResponseWriter, token string) error {
	if w != nil {
		http.SetCookie(w, m.cookie("", time.Unix(0, 0)))
	}
	if token == "" {
		return nil
	}
	// expired tokens still carry a jti worth deleting
	claims, err := m.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil
	}
	if err := m.tokens.Delete(ctx, claims.ID); err != nil {
		return fmt.Errorf("session: unable to remove binding, cause %w", err)
	}
	log := logutil.GetOrDefault(ctx)
	log.Debug().Str("identity", claims.Subject).Msg("Session terminated")
	return nil
}

func (m *Manager) TerminateRequest(w http.ResponseWriter, r *http.Request) error {
	var token string
	if c, err := r.Cookie(m.cfg.CookieName); err == nil {
		token = c.Value
	}
	return m.Terminate(r.Context(), w, token)
}

func (m *Manager) parse(token string, extra ...jwt.ParserOption) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	opts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.cfg.Now),
	}, extra...)
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.signKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, errNoSessionID
	}
	return claims, nil
}

func (m *Manager) newSessionID() (string, error) {
	var buf [32]byte
	if _, err := io.ReadFull(m.cfg.Entropy, buf[:]); err != nil {
		return "", fmt.Errorf("session: unable to generate session id, cause %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}

func (m *Manager) cookie(value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   !m.cfg.InsecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		c.MaxAge = -1
	}
	return c
}
