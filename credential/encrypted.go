package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	EncryptedName = "encrypted"

	nonceSize = 24
)

var (
	errNotEncrypted = errors.New("credential: stored value is not a valid encrypted password")
)

// Encrypted is the reversible scheme of the first generation.
type Encrypted struct {
	key [32]byte
}

// NewEncrypted derives the encryption key from secret.
func NewEncrypted(secret string) (*Encrypted, error) {
	if secret == "" {
		return nil, errors.New("credential: encrypted scheme requires a secret")
	}
	return &Encrypted{key: sha256.Sum256([]byte(secret))}, nil
}

func (e *Encrypted) Name() string { return EncryptedName }

func (e *Encrypted) Derive(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("credential: unable to generate nonce, cause %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, &e.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *Encrypted) Verify(stored, plain string) (bool, error) {
	revealed, err := e.Reveal(stored)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(revealed), []byte(plain)) == 1, nil
}

// Reveal decrypts stored back into the plain text password.
func (e *Encrypted) Reveal(stored string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || len(sealed) < nonceSize+secretbox.Overhead {
		return "", errNotEncrypted
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &e.key)
	if !ok {
		return "", errNotEncrypted
	}
	return string(plain), nil
}
