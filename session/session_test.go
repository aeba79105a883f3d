package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andrebq/secrets/internal/testutil"
	"github.com/stretchr/testify/require"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func newManager(t *testing.T, c *clock) *Manager {
	ctx := context.Background()
	tokens, err := InMemoryTokenStore(ctx, time.Hour)
	require.NoError(t, err)
	if mem, ok := tokens.(*memStore); ok && c != nil {
		mem.now = c.Now
	}
	cfg := Config{TTL: time.Hour}
	if c != nil {
		cfg.Now = c.Now
	}
	m, err := NewManager(ctx, testutil.RandomKey(t), tokens, cfg)
	require.NoError(t, err)
	return m
}

func TestEstablishResolveTerminate(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, nil)

	token, err := m.Establish(ctx, nil, "42")
	require.NoError(t, err)
	state := m.Resolve(ctx, token)
	id, ok := state.IdentityID()
	require.True(t, ok)
	require.Equal(t, "42", id)

	require.NoError(t, m.Terminate(ctx, nil, token))
	require.Equal(t, Anonymous(), m.Resolve(ctx, token))

	// terminating twice is a no-op
	require.NoError(t, m.Terminate(ctx, nil, token))
	require.NoError(t, m.Terminate(ctx, nil, ""))
	require.NoError(t, m.Terminate(ctx, nil, "garbage"))
}

func TestTamperedTokens(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, nil)
	token, err := m.Establish(ctx, nil, "42")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	flipped := []byte(parts[2])
	if flipped[0] == 'A' {
		flipped[0] = 'B'
	} else {
		flipped[0] = 'A'
	}
	tampered := strings.Join([]string{parts[0], parts[1], string(flipped)}, ".")

	for _, tk := range []string{"", "not-a-jwt", tampered, token + "x"} {
		require.False(t, m.Resolve(ctx, tk).IsAuthenticated(), "token %q should be anonymous", tk)
	}

	other := newManager(t, nil)
	require.False(t, other.Resolve(ctx, token).IsAuthenticated(), "tokens from another key must not resolve")
}

func TestExpiredTokens(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Now()}
	m := newManager(t, c)
	token, err := m.Establish(ctx, nil, "42")
	require.NoError(t, err)
	require.True(t, m.Resolve(ctx, token).IsAuthenticated())

	c.now = c.now.Add(2 * time.Hour)
	require.False(t, m.Resolve(ctx, token).IsAuthenticated())
}

func TestBindingMustMatchSubject(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, nil)
	token, err := m.Establish(ctx, nil, "42")
	require.NoError(t, err)
	claims, err := m.parse(token)
	require.NoError(t, err)
	require.NoError(t, m.tokens.Save(ctx, claims.ID, "43", time.Hour))
	require.False(t, m.Resolve(ctx, token).IsAuthenticated())
}

func TestCookieRoundTrip(t *testing.T) {
	m := newManager(t, nil)
	rec := httptest.NewRecorder()
	_, err := m.Establish(context.Background(), rec, "42")
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.True(t, cookies[0].HttpOnly)
	require.True(t, cookies[0].Secure)
	require.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookies[0])
	id, ok := m.FromRequest(req).IdentityID()
	require.True(t, ok)
	require.Equal(t, "42", id)

	out := httptest.NewRecorder()
	require.NoError(t, m.TerminateRequest(out, req))
	cleared := out.Result().Cookies()
	require.Len(t, cleared, 1)
	require.Equal(t, "", cleared[0].Value)
	require.False(t, m.FromRequest(req).IsAuthenticated())

	require.False(t, m.FromRequest(httptest.NewRequest("GET", "/", nil)).IsAuthenticated())
}

func TestTokensAreUnique(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, nil)
	a, err := m.Establish(ctx, nil, "42")
	require.NoError(t, err)
	b, err := m.Establish(ctx, nil, "42")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.NoError(t, m.Terminate(ctx, nil, a))
	require.True(t, m.Resolve(ctx, b).IsAuthenticated(), "logging out one device keeps the other")
}
