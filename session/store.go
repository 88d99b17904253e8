package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

type (
	// Store keeps serialized claims indexed by an opaque token.
	Store interface {
		Save(ctx context.Context, token string, claims []byte) error
		Lookup(ctx context.Context, token string) ([]byte, bool, error)
		Delete(ctx context.Context, token string) error
	}

	memStore struct {
		cache *bigcache.BigCache
	}
)

// InMemoryStore keeps sessions in process memory. Sessions are lost when
// the process restarts or when an entry is evicted after ttl.
func InMemoryStore(ttl time.Duration) (Store, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.CleanWindow = time.Minute
	if ttl < cfg.CleanWindow {
		cfg.CleanWindow = ttl
	}
	cache, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("session: unable to create cache, cause %w", err)
	}
	return &memStore{
		cache: cache,
	}, nil
}

func (m *memStore) Save(ctx context.Context, token string, claims []byte) error {
	return m.cache.Set(token, claims)
}

func (m *memStore) Lookup(ctx context.Context, token string) ([]byte, bool, error) {
	buf, err := m.cache.Get(token)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return buf, true, nil
}

func (m *memStore) Delete(ctx context.Context, token string) error {
	err := m.cache.Delete(token)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return err
}
