// Package store provides the token store backends: in-memory, Redis and a JSON file.
package store

import (
	"context"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/guarzo/staybook/common"
	"github.com/guarzo/staybook/common/config"
)

// ErrUnsupported is returned by Open for a backend name it does not know.
var ErrUnsupported = errors.New("unknown store backend")

// Open builds the backend selected by cfg. The returned close function releases
// any connection the backend holds and is never nil.
func Open(ctx context.Context, cfg config.StoreConfig) (common.TokenStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryStore(), noop, nil
	case config.BackendFile:
		log.WithField("path", cfg.FilePath).Debug("using file token store")
		return NewFileStore(cfg.FilePath), noop, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("redis store: ping %s: %w", cfg.RedisAddr, err)
		}
		log.WithField("addr", cfg.RedisAddr).Debug("using redis token store")
		return NewRedisStore(client, cfg.RedisPrefix), client.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w %q", ErrUnsupported, cfg.Backend)
	}
}
