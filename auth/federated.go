package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/andrebq/secrets/accounts"
	"github.com/andrebq/secrets/session"
	"golang.org/x/oauth2"
)

type (
	// Profile is the part of the provider profile kept by the site. ID must
	// be stable for the same person across logins.
	Profile struct {
		ID          string
		DisplayName string
	}

	// ProfileFunc loads the profile of the owner of tok.
	ProfileFunc func(ctx context.Context, tok *oauth2.Token) (Profile, error)

	// FederatedStrategy trades an authorization code for a provider profile
	// and maps it onto exactly one account.
	FederatedStrategy struct {
		kind     Kind
		provider accounts.Provider
		config   *oauth2.Config
		profile  ProfileFunc
		store    *accounts.Store
	}
)

func NewFederated(k Kind, config *oauth2.Config, profile ProfileFunc, store *accounts.Store) (*FederatedStrategy, error) {
	p, err := accounts.ParseProvider(string(k))
	if err != nil {
		return nil, err
	}
	switch {
	case config == nil:
		return nil, fmt.Errorf("auth: %v requires an oauth2 configuration", k)
	case profile == nil:
		return nil, fmt.Errorf("auth: %v requires a profile loader", k)
	case store == nil:
		return nil, fmt.Errorf("auth: %v requires an account store", k)
	}
	return &FederatedStrategy{
		kind:     k,
		provider: p,
		config:   config,
		profile:  profile,
		store:    store,
	}, nil
}

func (f *FederatedStrategy) Kind() Kind { return f.kind }

// AuthCodeURL is where the visitor is sent to approve the login, state is
// echoed back to the callback.
func (f *FederatedStrategy) AuthCodeURL(state string) string {
	return f.config.AuthCodeURL(state)
}

// Verify runs the callback half of the flow. Repeating it for the same
// provider identity always yields the same account.
func (f *FederatedStrategy) Verify(ctx context.Context, c Credentials) (session.Identity, error) {
	if c.Code == "" {
		return session.Identity{}, ErrInvalidCredentials
	}
	tok, err := f.config.Exchange(ctx, c.Code)
	if err != nil {
		return session.Identity{}, fmt.Errorf("%w: %v code exchange failed, cause %v", ErrProvider, f.kind, err)
	}
	prof, err := f.profile(ctx, tok)
	if err != nil {
		if errors.Is(err, ErrProvider) {
			return session.Identity{}, err
		}
		return session.Identity{}, fmt.Errorf("%w: unable to load %v profile, cause %v", ErrProvider, f.kind, err)
	}
	if prof.ID == "" {
		return session.Identity{}, fmt.Errorf("%w: %v profile without id", ErrProvider, f.kind)
	}
	acc, _, err := f.store.FindOrCreateByExternalID(ctx, f.provider, prof.ID, prof.DisplayName)
	if err != nil {
		return session.Identity{}, err
	}
	return identityOf(acc, f.kind), nil
}
