// Package auth decides who a visitor is. Each way of proving an identity
// (a local password, a Google or a Facebook login) is a Strategy, and a
// successful Verify always ends with a session.Identity bound to exactly
// one account.
package auth

import (
	"context"
	"errors"

	"github.com/andrebq/secrets/session"
)

type (
	Kind string

	// Credentials carries whatever a strategy needs. Local strategies read
	// Username and Password, federated ones read Code.
	Credentials struct {
		Username string
		Password string
		Code     string
	}

	Strategy interface {
		Kind() Kind
		// Verify returns ErrInvalidCredentials when the visitor could not
		// prove who they are, an error wrapping ErrProvider when the
		// identity provider reported a failure, anything else is internal.
		Verify(ctx context.Context, c Credentials) (session.Identity, error)
	}

	// Redirector is implemented by strategies that send the visitor to a
	// third party before Verify can be called.
	Redirector interface {
		AuthCodeURL(state string) string
	}

	// Registry stores configured strategies.
	Registry struct {
		strategies map[Kind]Strategy
	}
)

const (
	Local    Kind = "local"
	Google   Kind = "google"
	Facebook Kind = "facebook"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrAccountExists      = errors.New("auth: account already exists")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrProvider           = errors.New("auth: identity provider failure")
)

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[Kind]Strategy)}
}

// Register adds s under its own kind, replacing any previous strategy.
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Kind()] = s
}

func (r *Registry) Strategy(k Kind) (Strategy, bool) {
	s, ok := r.strategies[k]
	return s, ok
}

// Redirector returns the strategy for k when it is configured and needs a
// redirect to start.
func (r *Registry) Redirector(k Kind) (Redirector, bool) {
	s, ok := r.strategies[k]
	if !ok {
		return nil, false
	}
	red, ok := s.(Redirector)
	return red, ok
}
