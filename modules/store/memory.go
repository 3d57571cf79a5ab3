package store

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/guarzo/staybook/common"
)

const cleanupInterval = 32 * time.Minute

var _ common.TokenStore = (*MemoryStore)(nil)

// MemoryStore keeps tokens in process memory. It is lost on exit and is meant
// for tests and short-lived tools.
type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	value, found := m.cache.Get(key)
	if !found {
		return "", false, nil
	}
	return value.(string), true, nil
}

func (m *MemoryStore) GetWithExpiration(_ context.Context, key string) (string, time.Time, bool, error) {
	value, expiresAt, found := m.cache.GetWithExpiration(key)
	if !found {
		return "", time.Time{}, false, nil
	}
	return value.(string), expiresAt, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = cache.NoExpiration
	}
	m.cache.Set(key, value, expiration)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}
