package web

import (
	"encoding/json"
	"net/http"

	"github.com/andrebq/secrets/accounts"
)

type secretList struct {
	Secrets []string `json:"secrets"`
}

// listSecrets answers the same listing as the secrets page, as JSON.
func listSecrets(store *accounts.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secrets, err := store.ListSecrets(r.Context())
		if err != nil {
			internalError(w, r, err, "Unable to list secrets")
			return
		}
		if secrets == nil {
			secrets = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(secretList{Secrets: secrets})
	}
}

func healthz(store *accounts.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			internalError(w, r, err, "Account store is unavailable")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	}
}
