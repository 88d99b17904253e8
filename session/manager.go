package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/andrebq/secrets/internal/logutil"
)

const (
	DefaultCookieName = "secrets_session"
	DefaultTTL        = 24 * time.Hour
)

// Manager ties a Store to the session cookie. Handlers receive a Manager
// explicitly, nothing about sessions lives in package level state.
type Manager struct {
	store      Store
	secret     []byte
	cookieName string
	ttl        time.Duration
	now        func() time.Time
}

func NewManager(store Store, secret []byte, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session: manager requires a store")
	}
	if len(secret) == 0 {
		return nil, errors.New("session: manager requires a secret to sign cookies")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:      store,
		secret:     secret,
		cookieName: DefaultCookieName,
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// Establish starts a new session for id and sends the cookie referencing it.
func (m *Manager) Establish(w http.ResponseWriter, r *http.Request, id Identity) error {
	token, err := newToken()
	if err != nil {
		return err
	}
	expires := m.now().Add(m.ttl)
	claims, err := Encode(Claims{Identity: id, ExpiresAt: expires.Unix()})
	if err != nil {
		return err
	}
	if err := m.store.Save(r.Context(), token, claims); err != nil {
		return fmt.Errorf("session: unable to save session, cause %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    m.sign(token),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
		Secure:   r.TLS != nil,
	})
	return nil
}

// Current returns the identity bound to the request, if any. A cookie that
// fails signature checks, references an unknown token or carries expired
// claims is treated as no session at all.
func (m *Manager) Current(r *http.Request) (Identity, bool) {
	token, ok := m.token(r)
	if !ok {
		return Identity{}, false
	}
	raw, found, err := m.store.Lookup(r.Context(), token)
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("Unexpected error when looking up session")
		return Identity{}, false
	}
	if !found {
		return Identity{}, false
	}
	id, err := Decode(raw, m.now())
	if err != nil {
		return Identity{}, false
	}
	return id, true
}

// Destroy removes the server side state before expiring the cookie, a
// request made right after Destroy returns is already anonymous.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) error {
	if token, ok := m.token(r); ok {
		if err := m.store.Delete(r.Context(), token); err != nil {
			return fmt.Errorf("session: unable to delete session, cause %w", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	return nil
}

// Attach puts the identity of the current session, when there is one, in
// the request context.
func (m *Manager) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := m.Current(r); ok {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// CookieName is the name of the cookie carrying the session token.
func (m *Manager) CookieName() string {
	return m.cookieName
}

func (m *Manager) token(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return m.verify(cookie.Value)
}

func (m *Manager) sign(token string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(token))
	return token + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (m *Manager) verify(value string) (string, bool) {
	token, sig, found := strings.Cut(value, ".")
	if !found || token == "" {
		return "", false
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(token))
	if subtle.ConstantTimeCompare(got, mac.Sum(nil)) != 1 {
		return "", false
	}
	return token, true
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: unable to generate token, cause %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
