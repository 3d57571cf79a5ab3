package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/guarzo/staybook/common"
)

const defaultRedisPrefix = "staybook:"

// RedisCommander is the subset of the go-redis API the store needs. Both
// *redis.Client and *redis.ClusterClient satisfy it.
type RedisCommander interface {
	redis.StringCmdable
	redis.GenericCmdable
}

var _ common.TokenStore = (*RedisStore)(nil)

// RedisStore keeps tokens in Redis so several processes share one session.
type RedisStore struct {
	client RedisCommander
	prefix string
	now    func() time.Time
}

func NewRedisStore(client RedisCommander, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis store: get %s: %w", key, err)
	}
	return val, true, nil
}

func (r *RedisStore) GetWithExpiration(ctx context.Context, key string) (string, time.Time, bool, error) {
	val, found, err := r.Get(ctx, key)
	if err != nil || !found {
		return "", time.Time{}, found, err
	}
	ttl, err := r.client.PTTL(ctx, r.key(key)).Result()
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("redis store: ttl %s: %w", key, err)
	}
	// PTTL reports -1 for keys without expiry and -2 if the key vanished meanwhile.
	switch {
	case ttl == -2:
		return "", time.Time{}, false, nil
	case ttl < 0:
		return val, time.Time{}, true, nil
	}
	return val, r.now().Add(ttl), true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	if expiration < 0 {
		expiration = 0
	}
	if err := r.client.Set(ctx, r.key(key), value, expiration).Err(); err != nil {
		return fmt.Errorf("redis store: set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis store: delete %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}
