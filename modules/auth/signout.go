package auth

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/guarzo/staybook/common"
	"github.com/guarzo/staybook/modules/session"
)

// SignOut clears both stored tokens and resets the session. It is idempotent.
// The session is reset even when the store fails; the store errors are returned.
func SignOut(ctx context.Context, store common.TokenStore, sess *session.Session) error {
	var errs []error
	for _, key := range []string{common.AccessTokenKey, common.RefreshTokenKey} {
		if err := store.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if sess != nil {
		sess.Logout()
	}

	err := errors.Join(errs...)
	if err != nil {
		log.WithError(err).Warn("sign-out: failed to clear stored tokens")
	} else {
		log.Debug("signed out")
	}
	return err
}

// StoreCredentials persists a freshly issued credential pair: the access token
// with its 30-minute lifetime, the refresh token without expiry. An empty
// refresh token leaves the stored one in place.
func StoreCredentials(ctx context.Context, store common.TokenStore, accessToken, refreshToken string) error {
	if err := store.Set(ctx, common.AccessTokenKey, accessToken, common.AccessTokenTTL); err != nil {
		return err
	}
	if refreshToken == "" {
		return nil
	}
	return store.Set(ctx, common.RefreshTokenKey, refreshToken, 0)
}
