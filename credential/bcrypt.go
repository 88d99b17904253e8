package credential

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptName = "bcrypt"

	// BcryptCost is fixed, every stored hash uses the same work factor.
	BcryptCost = 10
)

type Bcrypt struct{}

func NewBcrypt() *Bcrypt { return &Bcrypt{} }

func (b *Bcrypt) Name() string { return BcryptName }

func (b *Bcrypt) Derive(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("credential: unable to hash password, cause %w", err)
	}
	return string(hash), nil
}

// Verify never accepts a candidate longer than MaxPasswordLength, bcrypt
// would only compare its first 72 bytes.
func (b *Bcrypt) Verify(stored, plain string) (bool, error) {
	if len(plain) > MaxPasswordLength {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	}
	return false, fmt.Errorf("credential: invalid bcrypt hash, cause %w", err)
}
