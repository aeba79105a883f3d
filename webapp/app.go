// Package webapp exposes the secrets site over HTTP.
package webapp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/andrebq/secrets/auth"
	"github.com/andrebq/secrets/federated"
	"github.com/andrebq/secrets/gate"
	"github.com/andrebq/secrets/identity"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/secret"
	"github.com/andrebq/secrets/session"
	"github.com/julienschmidt/httprouter"
)

const (
	maxFormBytes = 64 * 1024
	maxNoteLen   = 4096

	stateCookie = "secrets_oauth_state"
)

type (
	Config struct {
		Variant   Variant
		Store     identity.Store
		Verifier  *auth.Verifier
		Registrar *auth.Registrar
		Sessions  *session.Manager
		// Resolver and Provider are only used by the federated variant.
		Resolver *auth.Resolver
		Provider federated.Provider
		// InsecureCookie allows cookies over plain http, for local development.
		InsecureCookie bool
	}

	app struct {
		Config
		views *renderer
		realm *gate.Realm
	}
)

func AsHandler(ctx context.Context, cfg Config) (http.Handler, error) {
	switch {
	case cfg.Store == nil, cfg.Verifier == nil, cfg.Registrar == nil, cfg.Sessions == nil:
		return nil, errors.New("webapp: store, verifier, registrar and sessions are required")
	case cfg.Variant.Federated() && (cfg.Resolver == nil || cfg.Provider == nil):
		return nil, errors.New("webapp: federated variant requires a resolver and a provider")
	}
	views, err := newRenderer()
	if err != nil {
		return nil, err
	}
	a := &app{
		Config: cfg,
		views:  views,
		realm:  gate.NewRealm(cfg.Sessions, "/login"),
	}

	router := httprouter.New()
	router.HandlerFunc("GET", "/", a.page("home"))
	router.HandlerFunc("GET", "/login", a.page("login"))
	router.HandlerFunc("GET", "/register", a.page("register"))
	router.HandlerFunc("POST", "/register", a.register)
	router.HandlerFunc("POST", "/login", a.login)
	router.Handler("GET", "/secrets", a.realm.Protect(http.HandlerFunc(a.listSecrets)))
	router.Handler("GET", "/submit", a.realm.Protect(a.page("submit")))
	router.Handler("POST", "/submit", a.realm.Protect(http.HandlerFunc(a.submit)))
	router.HandlerFunc("GET", "/logout", a.logout)
	router.HandlerFunc("GET", "/healthz", a.health)
	if cfg.Variant.Federated() {
		router.HandlerFunc("GET", "/auth/google", a.federatedStart)
		router.HandlerFunc("GET", "/auth/google/secrets", a.federatedCallback)
	}
	router.PanicHandler = a.panicked
	return withRequestLog(logutil.GetOrDefault(ctx), router), nil
}

func (a *app) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.views.render(w, r, http.StatusOK, name, a.pageData(r))
	}
}

func (a *app) pageData(r *http.Request) page {
	_, authenticated := gate.IdentityFrom(r.Context())
	if !authenticated {
		authenticated = a.Sessions.FromRequest(r).IsAuthenticated()
	}
	return page{Authenticated: authenticated, Federated: a.Variant.Federated()}
}

func (a *app) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logutil.GetOrDefault(ctx)
	user, passwd, ok := a.credentials(w, r)
	if !ok {
		return
	}
	defer passwd.Zero()
	id, err := a.Registrar.Register(ctx, user, passwd)
	var invalid auth.InvalidInput
	switch {
	case errors.Is(err, identity.DuplicateIdentity{}):
		http.Redirect(w, r, "/register", http.StatusSeeOther)
		return
	case errors.As(err, &invalid):
		data := a.pageData(r)
		data.Error = fmt.Sprintf("Please check your %v.", invalid.Field)
		a.views.render(w, r, http.StatusBadRequest, "register", data)
		return
	case err != nil:
		log.Error().Err(err).Msg("Unable to register identity")
		a.unavailable(w, r)
		return
	}
	a.establish(w, r, id)
}

func (a *app) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, passwd, ok := a.credentials(w, r)
	if !ok {
		return
	}
	defer passwd.Zero()
	id, err := a.Verifier.Verify(ctx, user, passwd)
	switch {
	case errors.Is(err, auth.ErrRejected):
		data := a.pageData(r)
		data.Error = "Invalid username or password."
		a.views.render(w, r, http.StatusUnauthorized, "login", data)
		return
	case err != nil:
		log := logutil.GetOrDefault(ctx)
		log.Error().Err(err).Msg("Unable to verify credentials")
		a.unavailable(w, r)
		return
	}
	a.establish(w, r, id)
}

func (a *app) establish(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := a.Sessions.Establish(r.Context(), w, id); err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Str("identity", id).Msg("Unable to establish session")
		a.unavailable(w, r)
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusSeeOther)
}

func (a *app) listSecrets(w http.ResponseWriter, r *http.Request) {
	records, err := a.Store.FindMany(r.Context(), identity.Filter{WithNote: true})
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("Unable to list secrets")
		a.unavailable(w, r)
		return
	}
	data := a.pageData(r)
	data.Secrets = make([]string, 0, len(records))
	for _, rec := range records {
		data.Secrets = append(data.Secrets, rec.Note)
	}
	a.views.render(w, r, http.StatusOK, "secrets", data)
}

func (a *app) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := gate.IdentityFrom(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	note := r.PostFormValue("secret")
	if len(note) > maxNoteLen {
		data := a.pageData(r)
		data.Error = fmt.Sprintf("Secrets are limited to %v bytes.", maxNoteLen)
		a.views.render(w, r, http.StatusBadRequest, "submit", data)
		return
	}
	err := a.Store.Update(ctx, id, identity.NoteChange(note))
	switch {
	case errors.Is(err, identity.NotFound{}):
		// session outlived its identity
		a.Sessions.TerminateRequest(w, r)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	case err != nil:
		log := logutil.GetOrDefault(ctx)
		log.Error().Err(err).Str("identity", id).Msg("Unable to save secret")
		a.unavailable(w, r)
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusSeeOther)
}

func (a *app) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.Sessions.TerminateRequest(w, r); err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Warn().Err(err).Msg("Unable to remove session binding")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (a *app) federatedStart(w http.ResponseWriter, r *http.Request) {
	state, err := federated.NewState(nil)
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("Unable to start federated login")
		a.unavailable(w, r)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   !a.InsecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, a.Provider.AuthCodeURL(state), http.StatusFound)
}

func (a *app) federatedCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logutil.GetOrDefault(ctx)
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth/google", MaxAge: -1, HttpOnly: true, Secure: !a.InsecureCookie})

	expected, err := r.Cookie(stateCookie)
	state := r.URL.Query().Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(expected.Value), []byte(state)) != 1 {
		log.Warn().Msg("Federated callback with missing or invalid state")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	profile, err := a.Provider.Exchange(ctx, code)
	if err != nil {
		log.Warn().Err(err).Str("provider", a.Provider.Name()).Msg("Federated sign-in failed")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	id, err := a.Resolver.ResolveOrCreate(ctx, a.Provider.Name(), profile.Subject)
	if err != nil {
		log.Error().Err(err).Msg("Unable to resolve federated identity")
		a.unavailable(w, r)
		return
	}
	a.establish(w, r, id)
}

func (a *app) health(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.Ping(r.Context()); err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("Health check failed")
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "ok", http.StatusOK)
}

func (a *app) credentials(w http.ResponseWriter, r *http.Request) (string, secret.PlainText, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return "", nil, false
	}
	return r.PostFormValue("username"), secret.PlainText(r.PostFormValue("password")), true
}

func (a *app) unavailable(w http.ResponseWriter, r *http.Request) {
	a.views.render(w, r, http.StatusServiceUnavailable, "error", a.pageData(r))
}

func (a *app) panicked(w http.ResponseWriter, r *http.Request, v interface{}) {
	log := logutil.GetOrDefault(r.Context())
	log.Error().Interface("panic", v).Msg("Handler panicked")
	http.Error(w, "internal error", http.StatusInternalServerError)
}
