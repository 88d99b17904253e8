package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/andrebq/secrets/accounts"
	"github.com/andrebq/secrets/auth"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/session"
	"github.com/julienschmidt/httprouter"
)

type (
	// SessionConfig configures the generation that remembers visitors.
	// Strategies holds the federated strategies that were configured, it
	// may be nil when only local accounts are enabled.
	SessionConfig struct {
		Store           *accounts.Store
		Local           *auth.LocalStrategy
		Strategies      *auth.Registry
		Sessions        *session.Manager
		State           *auth.StateCookie
		LoginsPerMinute int
	}

	sessionSite struct {
		store      *accounts.Store
		local      *auth.LocalStrategy
		strategies *auth.Registry
		sessions   *session.Manager
		state      *auth.StateCookie
	}
)

func AsSessionHandler(ctx context.Context, cfg SessionConfig) (http.Handler, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("web: session handler requires an account store")
	case cfg.Local == nil:
		return nil, errors.New("web: session handler requires a local strategy")
	case cfg.Sessions == nil:
		return nil, errors.New("web: session handler requires a session manager")
	case cfg.State == nil:
		return nil, errors.New("web: session handler requires a state cookie")
	}
	if cfg.Strategies == nil {
		cfg.Strategies = auth.NewRegistry()
	}
	site := &sessionSite{
		store:      cfg.Store,
		local:      cfg.Local,
		strategies: cfg.Strategies,
		sessions:   cfg.Sessions,
		state:      cfg.State,
	}
	limit := perMinute(cfg.LoginsPerMinute)
	protect := auth.RequireIdentity(cfg.Sessions, "/login")

	router := httprouter.New()
	router.HandlerFunc("GET", "/", staticPage("home.html"))
	router.HandlerFunc("GET", "/login", site.form("login.html"))
	router.HandlerFunc("POST", "/login", limit(site.login))
	router.HandlerFunc("GET", "/register", site.form("register.html"))
	router.HandlerFunc("POST", "/register", limit(site.register))
	router.HandlerFunc("GET", "/secrets", site.secrets)
	router.HandlerFunc("GET", "/logout", site.logout)

	router.HandlerFunc("GET", "/auth/google", site.startFederated(auth.Google))
	router.HandlerFunc("GET", "/auth/google/secrets", site.callback(auth.Google))
	router.HandlerFunc("GET", "/login/federated/facebook", site.startFederated(auth.Facebook))
	router.HandlerFunc("GET", "/auth/facebook/secrets", site.callback(auth.Facebook))

	router.Handler("GET", "/submit", protect(http.HandlerFunc(site.submitForm)))
	router.Handler("POST", "/submit", protect(http.HandlerFunc(site.submit)))

	router.HandlerFunc("GET", "/api/secrets", listSecrets(cfg.Store))
	router.HandlerFunc("GET", "/healthz", healthz(cfg.Store))
	router.ServeFiles("/static/*filepath", staticFiles())
	return cfg.Sessions.Attach(router), nil
}

func (s *sessionSite) form(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, google := s.strategies.Redirector(auth.Google)
		_, facebook := s.strategies.Redirector(auth.Facebook)
		render(w, r, http.StatusOK, name, view{Google: google, Facebook: facebook})
	}
}

func (s *sessionSite) register(w http.ResponseWriter, r *http.Request) {
	id, err := s.local.Register(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if errors.Is(err, auth.ErrInvalidInput) || errors.Is(err, auth.ErrAccountExists) {
		http.Redirect(w, r, "/register", http.StatusFound)
		return
	} else if err != nil {
		internalError(w, r, err, "Unable to register account")
		return
	}
	s.establish(w, r, id)
}

func (s *sessionSite) login(w http.ResponseWriter, r *http.Request) {
	id, err := s.local.Verify(r.Context(), auth.Credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	})
	if errors.Is(err, auth.ErrInvalidCredentials) {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	} else if err != nil {
		internalError(w, r, err, "Unable to verify credentials")
		return
	}
	s.establish(w, r, id)
}

func (s *sessionSite) establish(w http.ResponseWriter, r *http.Request, id session.Identity) {
	if err := s.sessions.Establish(w, r, id); err != nil {
		internalError(w, r, err, "Unable to establish session")
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

func (s *sessionSite) secrets(w http.ResponseWriter, r *http.Request) {
	secrets, err := s.store.ListSecrets(r.Context())
	if err != nil {
		internalError(w, r, err, "Unable to list secrets")
		return
	}
	_, active := session.FromContext(r.Context())
	render(w, r, http.StatusOK, "secrets.html", view{Secrets: secrets, Session: active})
}

func (s *sessionSite) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(w, r); err != nil {
		internalError(w, r, err, "Unable to destroy session")
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *sessionSite) startFederated(k auth.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		red, ok := s.strategies.Redirector(k)
		if !ok {
			http.NotFound(w, r)
			return
		}
		state, err := s.state.Issue(w, r)
		if err != nil {
			internalError(w, r, err, "Unable to issue oauth state")
			return
		}
		http.Redirect(w, r, red.AuthCodeURL(state), http.StatusFound)
	}
}

func (s *sessionSite) callback(k auth.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		strategy, ok := s.strategies.Strategy(k)
		if !ok {
			http.NotFound(w, r)
			return
		}
		log := logutil.GetOrDefault(r.Context()).With().Str("provider", string(k)).Logger()
		if reason := r.URL.Query().Get("error"); reason != "" {
			// the state is spent either way
			_ = s.state.Check(w, r)
			log.Warn().Str("reason", reason).Msg("Provider refused the login")
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		if err := s.state.Check(w, r); err != nil {
			log.Warn().Err(err).Msg("Callback without a valid state")
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		id, err := strategy.Verify(r.Context(), auth.Credentials{Code: r.URL.Query().Get("code")})
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrProvider) {
			log.Warn().Err(err).Msg("Federated login failed")
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		} else if err != nil {
			internalError(w, r, err, "Unable to complete federated login")
			return
		}
		s.establish(w, r, id)
	}
}

func (s *sessionSite) submitForm(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	render(w, r, http.StatusOK, "submit.html", view{Session: true, Identity: &id, MaxSecret: MaxSecretLength})
}

// submit only ever writes to the account bound to the session, whatever
// else the form carries is ignored.
func (s *sessionSite) submit(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	secret := strings.TrimSpace(r.PostFormValue("secret"))
	if secret == "" || utf8.RuneCountInString(secret) > MaxSecretLength {
		render(w, r, http.StatusBadRequest, "submit.html", view{
			Session:   true,
			Identity:  &id,
			MaxSecret: MaxSecretLength,
			Message:   "Secrets must not be empty nor longer than the form allows",
		})
		return
	}
	err := s.store.SetSecret(r.Context(), id.ID, secret)
	if errors.As(err, &accounts.AccountNotFound{}) {
		// the account is gone, the session is meaningless
		if err := s.sessions.Destroy(w, r); err != nil {
			internalError(w, r, err, "Unable to destroy session")
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	} else if err != nil {
		internalError(w, r, err, "Unable to save secret")
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusFound)
}
