// Package credential holds the password representations used by each
// generation of the site.
//
// The first generation keeps passwords encrypted with a static shared
// secret. That is only marginally better than plain text: anyone holding
// the secret (which lives next to the code) can read every password back.
// It is kept as the baseline the other two generations improve upon.
//
// The second generation replaces encryption with bcrypt and the third one
// with argon2id. Both are salted and one-way, the stored value can only be
// used to check a candidate password, never to recover it.
package credential

import (
	"errors"
	"fmt"
)

// MaxPasswordLength is the longest password every scheme can take, bcrypt
// silently ignores anything past 72 bytes.
const MaxPasswordLength = 72

var (
	ErrEmptyPassword   = errors.New("credential: password must not be empty")
	ErrPasswordTooLong = errors.New("credential: password is too long")
	ErrNotOneWay       = errors.New("credential: scheme can recover the password")
)

// Scheme turns passwords into their stored representation and checks
// candidates against it.
type Scheme interface {
	Name() string
	// Derive returns the representation to be stored for plain.
	Derive(plain string) (string, error)
	// Verify reports whether plain matches stored. Mismatches are not
	// errors, an error means stored could not be interpreted at all.
	Verify(stored, plain string) (bool, error)
}

// ForGeneration returns the scheme registered under name. The secret is
// only used by the encrypted scheme.
func ForGeneration(name string, secret string) (Scheme, error) {
	switch name {
	case EncryptedName:
		return NewEncrypted(secret)
	case BcryptName:
		return NewBcrypt(), nil
	case Argon2idName:
		return NewArgon2id(), nil
	}
	return nil, fmt.Errorf("credential: unknown scheme %q", name)
}

// OneWay is ForGeneration restricted to the hashing schemes.
func OneWay(name string) (Scheme, error) {
	if name == EncryptedName {
		return nil, fmt.Errorf("%w: %v", ErrNotOneWay, name)
	}
	return ForGeneration(name, "")
}

// ValidatePassword checks plain before it is handed to any scheme.
func ValidatePassword(plain string) error {
	switch {
	case plain == "":
		return ErrEmptyPassword
	case len(plain) > MaxPasswordLength:
		return ErrPasswordTooLong
	}
	return nil
}
