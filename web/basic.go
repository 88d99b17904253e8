package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/andrebq/secrets/accounts"
	"github.com/andrebq/secrets/auth"
	"github.com/julienschmidt/httprouter"
)

type (
	// BasicConfig configures the generations without sessions: every
	// successful login or register renders the secrets page and nothing
	// is remembered about the visitor afterwards.
	BasicConfig struct {
		Store           *accounts.Store
		Local           *auth.LocalStrategy
		LoginsPerMinute int
	}

	basicSite struct {
		store *accounts.Store
		local *auth.LocalStrategy
	}
)

const invalidLoginMessage = "Invalid username or password"

func AsBasicHandler(ctx context.Context, cfg BasicConfig) (http.Handler, error) {
	if cfg.Store == nil || cfg.Local == nil {
		return nil, errors.New("web: basic handler requires an account store and a local strategy")
	}
	site := &basicSite{store: cfg.Store, local: cfg.Local}
	limit := perMinute(cfg.LoginsPerMinute)

	router := httprouter.New()
	router.HandlerFunc("GET", "/", staticPage("home.html"))
	router.HandlerFunc("GET", "/login", staticPage("login.html"))
	router.HandlerFunc("POST", "/login", limit(site.login))
	router.HandlerFunc("GET", "/register", staticPage("register.html"))
	router.HandlerFunc("POST", "/register", limit(site.register))
	router.HandlerFunc("GET", "/healthz", healthz(cfg.Store))
	router.ServeFiles("/static/*filepath", staticFiles())
	return router, nil
}

func staticPage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render(w, r, http.StatusOK, name, view{})
	}
}

func (s *basicSite) login(w http.ResponseWriter, r *http.Request) {
	_, err := s.local.Verify(r.Context(), auth.Credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	})
	if errors.Is(err, auth.ErrInvalidCredentials) {
		render(w, r, http.StatusUnauthorized, "login.html", view{Message: invalidLoginMessage})
		return
	} else if err != nil {
		internalError(w, r, err, "Unable to verify credentials")
		return
	}
	render(w, r, http.StatusOK, "secrets.html", view{})
}

func (s *basicSite) register(w http.ResponseWriter, r *http.Request) {
	_, err := s.local.Register(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		render(w, r, http.StatusBadRequest, "register.html", view{Message: "An email and a password are required"})
	case errors.Is(err, auth.ErrAccountExists):
		render(w, r, http.StatusConflict, "register.html", view{Message: "That email is already registered"})
	case err != nil:
		internalError(w, r, err, "Unable to register account")
	default:
		render(w, r, http.StatusOK, "secrets.html", view{})
	}
}
