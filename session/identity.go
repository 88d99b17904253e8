package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type (
	// Identity is the minimal description of an authenticated visitor kept
	// in a session. It never includes credentials.
	Identity struct {
		ID          string `json:"id"`
		Username    string `json:"username,omitempty"`
		DisplayName string `json:"display_name,omitempty"`
		Provider    string `json:"provider"`
	}

	// Claims is what the store keeps for each session token.
	Claims struct {
		Identity
		ExpiresAt int64 `json:"expires_at"`
	}

	ctxKey byte
)

var (
	ErrExpired       = errors.New("session: expired")
	ErrEmptyIdentity = errors.New("session: identity without id")

	identityKey = ctxKey(1)
)

// Encode serializes claims so they can be kept by a Store.
func Encode(c Claims) ([]byte, error) {
	if c.ID == "" {
		return nil, ErrEmptyIdentity
	}
	return json.Marshal(c)
}

// Decode rebuilds the identity from serialized claims. It only looks at
// the input and the given clock, no store is consulted.
func Decode(raw []byte, now time.Time) (Identity, error) {
	var c Claims
	if err := json.Unmarshal(raw, &c); err != nil {
		return Identity{}, fmt.Errorf("session: unable to decode claims, cause %w", err)
	}
	if c.ID == "" {
		return Identity{}, ErrEmptyIdentity
	}
	if !now.Before(time.Unix(c.ExpiresAt, 0)) {
		return Identity{}, ErrExpired
	}
	return c.Identity, nil
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
