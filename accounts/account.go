package accounts

import (
	"strings"
	"time"
)

type (
	// Account is the single entity of the site. A row is reachable by its
	// email, by one external identity key per provider, or by both.
	Account struct {
		ID          string
		Email       string
		Password    string
		GoogleID    string
		FacebookID  string
		DisplayName string
		Secret      *string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// Provider names an external identity provider. Each provider owns its
	// own column, so identities from different providers never meet.
	Provider string
)

const (
	Google   Provider = "google"
	Facebook Provider = "facebook"
)

// ParseProvider maps a provider name to a known Provider.
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case Google, Facebook:
		return p, nil
	}
	return "", UnknownProvider{Name: name}
}

func (p Provider) column() (string, error) {
	switch p {
	case Google:
		return "google_id", nil
	case Facebook:
		return "facebook_id", nil
	}
	return "", UnknownProvider{Name: string(p)}
}

// NormalizeEmail is applied to every email before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
