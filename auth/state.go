package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultStateCookie  = "secrets_oauth_state"
	defaultStateTimeout = 10 * time.Minute
)

var ErrInvalidState = errors.New("auth: invalid oauth state")

type (
	// StateCookie binds the state sent to a provider to the browser that
	// started the flow.
	StateCookie struct {
		name    string
		secret  []byte
		timeout time.Duration
		now     func() time.Time
	}

	statePayload struct {
		State     string `json:"state"`
		ExpiresAt int64  `json:"expires_at"`
	}
)

func NewStateCookie(secret []byte) *StateCookie {
	return &StateCookie{
		name:    DefaultStateCookie,
		secret:  secret,
		timeout: defaultStateTimeout,
		now:     time.Now,
	}
}

// Issue generates a new state and stores it, signed, in a short lived cookie.
func (s *StateCookie) Issue(w http.ResponseWriter, r *http.Request) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(buf)
	expires := s.now().Add(s.timeout)
	data, err := json.Marshal(statePayload{State: state, ExpiresAt: expires.Unix()})
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    s.sign(data),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
		Secure:   r.TLS != nil,
	})
	return state, nil
}

// Check compares the state echoed by the provider with the one kept in the
// cookie. The cookie is cleared either way, a state is good for one use.
func (s *StateCookie) Check(w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(s.name)
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	if err != nil {
		return ErrInvalidState
	}
	data, ok := s.verify(cookie.Value)
	if !ok {
		return ErrInvalidState
	}
	var payload statePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return ErrInvalidState
	}
	if payload.ExpiresAt < s.now().Unix() {
		return ErrInvalidState
	}
	got := r.URL.Query().Get("state")
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(payload.State)) != 1 {
		return ErrInvalidState
	}
	return nil
}

func (s *StateCookie) sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (s *StateCookie) verify(value string) ([]byte, bool) {
	encoded, sig, found := strings.Cut(value, ".")
	if !found {
		return nil, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return nil, false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return payload, subtle.ConstantTimeCompare(got, mac.Sum(nil)) == 1
}
