package auth

import (
	"net/http"

	"github.com/andrebq/secrets/session"
)

// RequireIdentity only lets requests with a live session reach sensitive,
// everything else is sent to loginURL without further detail.
func RequireIdentity(m *session.Manager, loginURL string) func(sensitive http.Handler) http.Handler {
	return func(sensitive http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := session.FromContext(r.Context())
			if !ok {
				id, ok = m.Current(r)
			}
			if !ok {
				http.Redirect(w, r, loginURL, http.StatusFound)
				return
			}
			sensitive.ServeHTTP(w, r.WithContext(session.WithIdentity(r.Context(), id)))
		})
	}
}
