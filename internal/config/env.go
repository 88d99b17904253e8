// Package config reads the process environment into the settings that
// should never travel through command line flags (secrets, OAuth clients).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	SessionSecretEnvVar    = "SECRETS_SESSION_SECRET"
	EncryptionSecretEnvVar = "SECRETS_ENCRYPTION_SECRET"
)

type (
	// Env holds everything loaded from environment variables.
	Env struct {
		SessionSecret    string        `env:"SECRETS_SESSION_SECRET"`
		EncryptionSecret string        `env:"SECRETS_ENCRYPTION_SECRET" envDefault:"Thisisourlittlesecret"`
		SessionTTL       time.Duration `env:"SECRETS_SESSION_TTL" envDefault:"24h"`
		LoginsPerMinute  int           `env:"SECRETS_LOGINS_PER_MINUTE" envDefault:"10"`

		Google   OAuthClient `envPrefix:"SECRETS_GOOGLE_"`
		Facebook OAuthClient `envPrefix:"SECRETS_FACEBOOK_"`
	}

	// OAuthClient is the registration of this site with an external provider.
	OAuthClient struct {
		ClientID     string   `env:"CLIENT_ID"`
		ClientSecret string   `env:"CLIENT_SECRET"`
		CallbackURL  string   `env:"CALLBACK_URL"`
		Scopes       []string `env:"SCOPES" envSeparator:","`
	}
)

// Enabled reports whether the client has enough information to start a login flow.
func (o OAuthClient) Enabled() bool {
	return o.ClientID != "" && o.ClientSecret != "" && o.CallbackURL != ""
}

// Load parses the process environment and then clears the secret bearing
// variables, so child processes (or a careless debug dump) never see them.
func Load() (Env, error) {
	var cfg Env
	if err := env.Parse(&cfg); err != nil {
		return Env{}, fmt.Errorf("config: unable to parse environment, cause %w", err)
	}
	for _, name := range []string{
		SessionSecretEnvVar,
		EncryptionSecretEnvVar,
		"SECRETS_GOOGLE_CLIENT_SECRET",
		"SECRETS_FACEBOOK_CLIENT_SECRET",
	} {
		os.Unsetenv(name)
	}
	return cfg, nil
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(environ map[string]string) (Env, error) {
	var cfg Env
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Env{}, fmt.Errorf("config: unable to parse environment, cause %w", err)
	}
	return cfg, nil
}

// RequireSessionSecret fails when the session generation would start
// without a way to sign its cookies.
func (e Env) RequireSessionSecret() error {
	if len(e.SessionSecret) < 16 {
		return fmt.Errorf("config: %v must hold at least 16 characters", SessionSecretEnvVar)
	}
	return nil
}
