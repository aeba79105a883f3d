package gate

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andrebq/secrets/internal/testutil"
	"github.com/andrebq/secrets/session"
	"github.com/steinfletcher/apitest"
)

func TestGuard(t *testing.T) {
	if _, ok := Guard(session.Anonymous()).Allowed(); ok {
		t.Fatal("anonymous must be denied")
	}
	id, ok := Guard(session.Authenticated("x")).Allowed()
	if !ok || id != "x" {
		t.Fatalf("authenticated(x) must be allowed with x, got %v %v", id, ok)
	}
}

func TestProtect(t *testing.T) {
	ctx := context.Background()
	tokens, err := session.InMemoryTokenStore(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	sessions, err := session.NewManager(ctx, testutil.RandomKey(t), tokens, session.Config{})
	if err != nil {
		t.Fatal(err)
	}
	sr := NewRealm(sessions, "")
	var count uint32
	var seen atomic.Value
	protected := sr.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint32(&count, 1)
		id, _ := IdentityFrom(r.Context())
		seen.Store(id)
		http.Error(w, "OK", http.StatusOK)
	}))
	apitest.Handler(protected).Get("/secrets").Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/login").
		End()

	token, err := sessions.Establish(ctx, nil, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	apitest.Handler(protected).Get("/secrets").
		Cookie(sessions.CookieName(), token).
		Expect(t).Status(http.StatusOK).End()
	if count != 1 {
		t.Fatal("Protected endpoint should have been called only once")
	}
	if seen.Load() != "abc123" {
		t.Fatalf("handler should see the identity, got %v", seen.Load())
	}

	sessions.Terminate(ctx, nil, token)
	apitest.Handler(protected).Get("/secrets").
		Cookie(sessions.CookieName(), token).
		Expect(t).Status(http.StatusSeeOther).End()
}
