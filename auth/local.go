package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andrebq/secrets/accounts"
	"github.com/andrebq/secrets/credential"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/session"
)

// LocalStrategy checks a username (the account email) and a password
// against the account store.
type LocalStrategy struct {
	store  *accounts.Store
	scheme credential.Scheme
}

func NewLocal(store *accounts.Store, scheme credential.Scheme) *LocalStrategy {
	return &LocalStrategy{store: store, scheme: scheme}
}

func (l *LocalStrategy) Kind() Kind { return Local }

func (l *LocalStrategy) Verify(ctx context.Context, c Credentials) (session.Identity, error) {
	if strings.TrimSpace(c.Username) == "" || credential.ValidatePassword(c.Password) != nil {
		return session.Identity{}, ErrInvalidCredentials
	}
	acc, err := l.store.FindByEmail(ctx, c.Username)
	if errors.As(err, &accounts.AccountNotFound{}) {
		return session.Identity{}, ErrInvalidCredentials
	} else if err != nil {
		return session.Identity{}, err
	}
	if acc.Password == "" {
		return session.Identity{}, ErrInvalidCredentials
	}
	ok, err := l.scheme.Verify(acc.Password, c.Password)
	if err != nil {
		// stored by another scheme, this generation cannot check it
		log := logutil.GetOrDefault(ctx)
		log.Warn().Err(err).Str("account", acc.ID).Str("scheme", l.scheme.Name()).Msg("Stored password is not readable by the active scheme")
		return session.Identity{}, ErrInvalidCredentials
	}
	if !ok {
		return session.Identity{}, ErrInvalidCredentials
	}
	return identityOf(acc, Local), nil
}

// Register creates a local account for username. The password is derived
// by the strategy scheme before it reaches the store.
func (l *LocalStrategy) Register(ctx context.Context, username, password string) (session.Identity, error) {
	username = accounts.NormalizeEmail(username)
	if username == "" {
		return session.Identity{}, fmt.Errorf("%w: username must not be empty", ErrInvalidInput)
	}
	if err := credential.ValidatePassword(password); err != nil {
		return session.Identity{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	stored, err := l.scheme.Derive(password)
	if err != nil {
		return session.Identity{}, fmt.Errorf("unable to derive password, cause %w", err)
	}
	acc, err := l.store.Create(ctx, accounts.Account{
		Email:       username,
		Password:    stored,
		DisplayName: username,
	})
	if errors.As(err, &accounts.DuplicateAccount{}) {
		return session.Identity{}, ErrAccountExists
	} else if errors.As(err, &accounts.InvalidAccount{}) {
		return session.Identity{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	} else if err != nil {
		return session.Identity{}, err
	}
	return identityOf(acc, Local), nil
}

func identityOf(acc accounts.Account, k Kind) session.Identity {
	name := acc.DisplayName
	if name == "" {
		name = acc.Email
	}
	return session.Identity{
		ID:          acc.ID,
		Username:    acc.Email,
		DisplayName: name,
		Provider:    string(k),
	}
}
