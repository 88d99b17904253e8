package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	Argon2idName = "argon2id"
)

var (
	errInvalidArgon2 = errors.New("credential: invalid argon2id hash")
)

type (
	Argon2Params struct {
		Memory      uint32
		Iterations  uint32
		Parallelism uint8
		SaltLength  uint32
		KeyLength   uint32
	}

	// Argon2id stores passwords as PHC strings:
	// $argon2id$v=19$m=<memory>,t=<iterations>,p=<parallelism>$<salt>$<hash>
	Argon2id struct {
		params Argon2Params
	}
)

// DefaultArgon2Params follows the OWASP minimum recommendation for argon2id.
var DefaultArgon2Params = Argon2Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func NewArgon2id() *Argon2id {
	return &Argon2id{params: DefaultArgon2Params}
}

// NewArgon2idWithParams is used when the defaults are too expensive (tests)
// or too cheap (hardened deployments). Verification always honours the
// parameters recorded in the stored value.
func NewArgon2idWithParams(p Argon2Params) *Argon2id {
	return &Argon2id{params: p}
}

func (a *Argon2id) Name() string { return Argon2idName }

func (a *Argon2id) Derive(plain string) (string, error) {
	salt := make([]byte, a.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("credential: unable to generate salt, cause %w", err)
	}
	hash := argon2.IDKey([]byte(plain), salt, a.params.Iterations, a.params.Memory, a.params.Parallelism, a.params.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		a.params.Memory, a.params.Iterations, a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

func (a *Argon2id) Verify(stored, plain string) (bool, error) {
	params, salt, expected, err := decodeArgon2id(stored)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(plain), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func decodeArgon2id(stored string) (Argon2Params, []byte, []byte, error) {
	// ["", "argon2id", "v=19", "m=..,t=..,p=..", salt, hash]
	parts := strings.Split(stored, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2Params{}, nil, nil, errInvalidArgon2
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Argon2Params{}, nil, nil, errInvalidArgon2
	}
	var p Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return Argon2Params{}, nil, nil, errInvalidArgon2
	}
	if p.Memory == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return Argon2Params{}, nil, nil, errInvalidArgon2
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Argon2Params{}, nil, nil, errInvalidArgon2
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return Argon2Params{}, nil, nil, errInvalidArgon2
	}
	return p, salt, hash, nil
}
