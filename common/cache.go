package common

import (
	"context"
	"time"
)

// Fixed keys of the persistent token store.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
	RedirectPathKey = "redirect_path"
)

// AccessTokenTTL is the absolute lifetime given to a stored access token.
const AccessTokenTTL = 30 * time.Minute

// TokenStore defines a minimal interface for a durable key/value store holding
// credentials and navigation state. Values are plain strings.
//
// For example, you could back this with:
//   - an in-memory map
//   - Redis
//   - a JSON file on disk
//
// A zero expiration means the value never expires. GetWithExpiration returns the
// zero time for such values.
type TokenStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	GetWithExpiration(ctx context.Context, key string) (value string, expiresAt time.Time, found bool, err error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}
