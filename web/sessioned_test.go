package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/andrebq/secrets/accounts"
	"github.com/andrebq/secrets/auth"
	"github.com/andrebq/secrets/credential"
	"github.com/andrebq/secrets/internal/testutil"
	"github.com/andrebq/secrets/session"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type sessionFixture struct {
	handler  http.Handler
	store    *accounts.Store
	sessions *session.Manager
	provider *httptest.Server
}

// newTokenServer answers every code with an access token derived from it,
// except "bad" which is refused.
func newTokenServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		code := r.PostForm.Get("code")
		w.Header().Set("Content-Type", "application/json")
		if code == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "at-" + code,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func acquireSessionHandler(ctx context.Context, t *testing.T) (*sessionFixture, func()) {
	store, cleanup := testutil.AcquireAccountStore(ctx, t, "accounts.db")
	provider := newTokenServer(t)

	cache, err := session.InMemoryStore(time.Hour)
	require.NoError(t, err)
	manager, err := session.NewManager(cache, []byte("web-tests-session-secret"), time.Hour)
	require.NoError(t, err)

	google, err := auth.NewFederated(auth.Google, &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:3000/auth/google/secrets",
		Scopes:       []string{"profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   provider.URL + "/authorize",
			TokenURL:  provider.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, func(ctx context.Context, tok *oauth2.Token) (auth.Profile, error) {
		sub := strings.TrimPrefix(tok.AccessToken, "at-")
		return auth.Profile{ID: sub, DisplayName: "Google " + sub}, nil
	}, store)
	require.NoError(t, err)
	registry := auth.NewRegistry()
	registry.Register(google)

	h, err := AsSessionHandler(ctx, SessionConfig{
		Store:      store,
		Local:      auth.NewLocal(store, testutil.CheapArgon2id()),
		Strategies: registry,
		Sessions:   manager,
		State:      auth.NewStateCookie([]byte("web-tests-state-secret")),
	})
	require.NoError(t, err)
	return &sessionFixture{handler: h, store: store, sessions: manager, provider: provider}, cleanup
}

func cookieNamed(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// register creates a local account and returns its session cookie.
func (f *sessionFixture) register(t *testing.T, username, password string) *http.Cookie {
	res := apitest.New().Handler(f.handler).
		Post("/register").FormData("username", username).FormData("password", password).
		Expect(t).Status(http.StatusFound).Header("Location", "/secrets").End()
	cookie := cookieNamed(res.Response, f.sessions.CookieName())
	require.NotNil(t, cookie)
	return cookie
}

// federatedLogin walks the whole google flow for the given code.
func (f *sessionFixture) federatedLogin(t *testing.T, code string) *http.Cookie {
	res := apitest.New().Handler(f.handler).
		Get("/auth/google").
		Expect(t).Status(http.StatusFound).End()
	location, err := url.Parse(res.Response.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, f.provider.URL+"/authorize", location.Scheme+"://"+location.Host+location.Path)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)
	stateCookie := cookieNamed(res.Response, auth.DefaultStateCookie)
	require.NotNil(t, stateCookie)

	res = apitest.New().Handler(f.handler).
		Get("/auth/google/secrets").Query("code", code).Query("state", state).
		Cookie(stateCookie.Name, stateCookie.Value).
		Expect(t).Status(http.StatusFound).Header("Location", "/secrets").End()
	cookie := cookieNamed(res.Response, f.sessions.CookieName())
	require.NotNil(t, cookie)
	return cookie
}

func (f *sessionFixture) submit(t *testing.T, cookie *http.Cookie, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestSessionRegisterLoginLogout(t *testing.T) {
	ctx := context.Background()
	f, cleanup := acquireSessionHandler(ctx, t)
	defer cleanup()

	cookie := f.register(t, "a@x.com", "p1")
	apitest.New().Handler(f.handler).
		Get("/submit").Cookie(cookie.Name, cookie.Value).
		Expect(t).Status(http.StatusOK).End()

	apitest.New().Handler(f.handler).
		Get("/logout").Cookie(cookie.Name, cookie.Value).
		Expect(t).Status(http.StatusFound).Header("Location", "/").End()

	// the old cookie is dead as soon as logout returns
	apitest.New().Handler(f.handler).
		Get("/submit").Cookie(cookie.Name, cookie.Value).
		Expect(t).Status(http.StatusFound).Header("Location", "/login").End()

	res := apitest.New().Handler(f.handler).
		Post("/login").FormData("username", "a@x.com").FormData("password", "p1").
		Expect(t).Status(http.StatusFound).Header("Location", "/secrets").End()
	fresh := cookieNamed(res.Response, f.sessions.CookieName())
	require.NotNil(t, fresh)
	apitest.New().Handler(f.handler).
		Get("/submit").Cookie(fresh.Name, fresh.Value).
		Expect(t).Status(http.StatusOK).End()
}

func TestSessionRejections(t *testing.T) {
	ctx := context.Background()
	f, cleanup := acquireSessionHandler(ctx, t)
	defer cleanup()
	f.register(t, "a@x.com", "p1")

	apitest.New().Handler(f.handler).
		Post("/login").FormData("username", "a@x.com").FormData("password", "p2").
		Expect(t).Status(http.StatusFound).Header("Location", "/login").End()
	apitest.New().Handler(f.handler).
		Post("/login").FormData("username", "nobody@x.com").FormData("password", "p1").
		Expect(t).Status(http.StatusFound).Header("Location", "/login").End()
	// kept by the bcrypt generation, argon2id cannot read it
	stored, err := credential.NewBcrypt().Derive("p1")
	require.NoError(t, err)
	_, err = f.store.Create(ctx, accounts.Account{Email: "v2@x.com", Password: stored})
	require.NoError(t, err)
	apitest.New().Handler(f.handler).
		Post("/login").FormData("username", "v2@x.com").FormData("password", "p1").
		Expect(t).Status(http.StatusFound).Header("Location", "/login").End()

	apitest.New().Handler(f.handler).
		Post("/register").FormData("username", "a@x.com").FormData("password", "p3").
		Expect(t).Status(http.StatusFound).Header("Location", "/register").End()
	apitest.New().Handler(f.handler).
		Post("/register").FormData("username", "b@x.com").FormData("password", "").
		Expect(t).Status(http.StatusFound).Header("Location", "/register").End()

	apitest.New().Handler(f.handler).
		Get("/submit").
		Expect(t).Status(http.StatusFound).Header("Location", "/login").End()
	rec := f.submit(t, nil, url.Values{"secret": {"anonymous"}})
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))

	secrets, err := f.store.ListSecrets(ctx)
	require.NoError(t, err)
	require.Empty(t, secrets)
}

func TestSubmitOnlyTouchesSessionAccount(t *testing.T) {
	ctx := context.Background()
	f, cleanup := acquireSessionHandler(ctx, t)
	defer cleanup()

	alice := f.register(t, "alice@x.com", "p1")
	f.register(t, "bob@x.com", "p2")
	bob, err := f.store.FindByEmail(ctx, "bob@x.com")
	require.NoError(t, err)

	rec := f.submit(t, alice, url.Values{"secret": {"alice likes tea"}, "id": {bob.ID}, "account_id": {bob.ID}})
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/secrets", rec.Header().Get("Location"))

	bob, err = f.store.FindByID(ctx, bob.ID)
	require.NoError(t, err)
	require.Nil(t, bob.Secret)
	a, err := f.store.FindByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	require.NotNil(t, a.Secret)
	require.Equal(t, "alice likes tea", *a.Secret)

	// a second submission replaces the first one
	rec = f.submit(t, alice, url.Values{"secret": {"alice likes coffee"}})
	require.Equal(t, http.StatusFound, rec.Code)

	apitest.New().Handler(f.handler).
		Get("/api/secrets").
		Expect(t).Status(http.StatusOK).
		Assert(jsonpath.Len("$.secrets", 1)).
		Assert(jsonpath.Contains("$.secrets", "alice likes coffee")).
		End()

	// the listing is public
	req := httptest.NewRequest(http.MethodGet, "/secrets", nil)
	page := httptest.NewRecorder()
	f.handler.ServeHTTP(page, req)
	require.Equal(t, http.StatusOK, page.Code)
	require.Contains(t, page.Body.String(), "alice likes coffee")
	require.NotContains(t, page.Body.String(), "Log Out")

	req = httptest.NewRequest(http.MethodGet, "/secrets", nil)
	req.AddCookie(alice)
	page = httptest.NewRecorder()
	f.handler.ServeHTTP(page, req)
	require.Equal(t, http.StatusOK, page.Code)
	require.Contains(t, page.Body.String(), "Log Out")

	rec = f.submit(t, alice, url.Values{"secret": {"   "}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.submit(t, alice, url.Values{"secret": {strings.Repeat("x", MaxSecretLength+1)}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFederatedLoginIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f, cleanup := acquireSessionHandler(ctx, t)
	defer cleanup()

	first := f.federatedLogin(t, "g-1")
	require.Equal(t, http.StatusFound, f.submit(t, first, url.Values{"secret": {"first visit"}}).Code)

	again := f.federatedLogin(t, "g-1")
	require.Equal(t, http.StatusFound, f.submit(t, again, url.Values{"secret": {"second visit"}}).Code)

	// both logins landed on the same account, so only one secret exists
	secrets, err := f.store.ListSecrets(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"second visit"}, secrets)

	other := f.federatedLogin(t, "g-2")
	require.Equal(t, http.StatusFound, f.submit(t, other, url.Values{"secret": {"someone else"}}).Code)
	secrets, err = f.store.ListSecrets(ctx)
	require.NoError(t, err)
	require.Len(t, secrets, 2)
}

func TestFederatedFailures(t *testing.T) {
	ctx := context.Background()
	f, cleanup := acquireSessionHandler(ctx, t)
	defer cleanup()

	res := apitest.New().Handler(f.handler).
		Get("/auth/google").
		Expect(t).Status(http.StatusFound).End()
	stateCookie := cookieNamed(res.Response, auth.DefaultStateCookie)
	require.NotNil(t, stateCookie)
	location, err := url.Parse(res.Response.Header.Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")

	// forged state
	apitest.New().Handler(f.handler).
		Get("/auth/google/secrets").Query("code", "g-1").Query("state", "forged").
		Cookie(stateCookie.Name, stateCookie.Value).
		Expect(t).Status(http.StatusFound).Header("Location", "/login").End()
	// no state cookie at all
	apitest.New().Handler(f.handler).
		Get("/auth/google/secrets").Query("code", "g-1").Query("state", state).
		Expect(t).Status(http.StatusFound).Header("Location", "/login").End()
	// the provider refused the code exchange
	apitest.New().Handler(f.handler).
		Get("/auth/google/secrets").Query("code", "bad").Query("state", state).
		Cookie(stateCookie.Name, stateCookie.Value).
		Expect(t).Status(http.StatusFound).Header("Location", "/login").End()
	// the visitor denied access at the provider, the state is dropped too
	res = apitest.New().Handler(f.handler).
		Get("/auth/google/secrets").Query("error", "access_denied").Query("state", state).
		Cookie(stateCookie.Name, stateCookie.Value).
		Expect(t).Status(http.StatusFound).Header("Location", "/login").End()
	cleared := cookieNamed(res.Response, auth.DefaultStateCookie)
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)
	require.Less(t, cleared.MaxAge, 0)

	// facebook was not configured
	apitest.New().Handler(f.handler).
		Get("/login/federated/facebook").
		Expect(t).Status(http.StatusNotFound).End()
	apitest.New().Handler(f.handler).
		Get("/auth/facebook/secrets").Query("code", "x").
		Expect(t).Status(http.StatusNotFound).End()
}

func TestSessionPages(t *testing.T) {
	ctx := context.Background()
	f, cleanup := acquireSessionHandler(ctx, t)
	defer cleanup()

	for _, p := range []string{"/", "/register", "/secrets", "/static/styles.css", "/healthz"} {
		apitest.New().Handler(f.handler).Get(p).Expect(t).Status(http.StatusOK).End()
	}
	apitest.New().Handler(f.handler).
		Get("/api/secrets").
		Expect(t).Status(http.StatusOK).
		Assert(jsonpath.Len("$.secrets", 0)).
		End()

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `href="/auth/google"`)
	require.NotContains(t, rec.Body.String(), "/login/federated/facebook")

	_, err := AsSessionHandler(ctx, SessionConfig{})
	require.Error(t, err)
}
