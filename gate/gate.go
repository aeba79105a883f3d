package gate

import (
	"context"
	"net/http"

	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/session"
)

type (
	Decision struct {
		identityID string
	}

	Resolver interface {
		FromRequest(*http.Request) session.State
	}

	Realm struct {
		sessions Resolver
		loginURL string
	}

	ctxKey byte
)

const (
	identityKey = ctxKey(1)

	DefaultLoginURL = "/login"
)

// Guard allows authenticated states and denies everything else.
func Guard(s session.State) Decision {
	id, ok := s.IdentityID()
	if !ok {
		return Decision{}
	}
	return Decision{identityID: id}
}

func (d Decision) Allowed() (string, bool) {
	return d.identityID, d.identityID != ""
}

func NewRealm(sessions Resolver, loginURL string) *Realm {
	if loginURL == "" {
		loginURL = DefaultLoginURL
	}
	return &Realm{
		sessions: sessions,
		loginURL: loginURL,
	}
}

func (s *Realm) Protect(sensitive http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := Guard(s.sessions.FromRequest(r)).Allowed()
		if !ok {
			log := logutil.GetOrDefault(r.Context())
			log.Debug().Str("path", r.URL.Path).Msg("Anonymous request to protected page")
			http.Redirect(w, r, s.loginURL, http.StatusSeeOther)
			return
		}
		sensitive.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func WithIdentity(ctx context.Context, identityID string) context.Context {
	return context.WithValue(ctx, identityKey, identityID)
}

// IdentityFrom returns the identity placed in ctx by Protect.
func IdentityFrom(ctx context.Context) (string, bool) {
	v, _ := ctx.Value(identityKey).(string)
	return v, v != ""
}
