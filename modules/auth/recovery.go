package auth

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/guarzo/staybook/common"
	"github.com/guarzo/staybook/common/logging"
)

// Recovery turns a 401 into one refresh and one retry.
//
// Recovery engages only when the response is a 401, the request has not been
// retried yet, and a refresh token is stored. Anything else passes through
// unchanged.
//
// With single-flight enabled (the default) concurrent 401s carrying the same
// refresh token share one refresh call, and a request whose stored token was
// already rotated by another request is retried with the new token directly.
// A request that brought its own Authorization header always refreshes.
type Recovery struct {
	store        common.TokenStore
	auth         common.AuthClient
	singleFlight bool
	group        singleflight.Group

	refreshes atomic.Int64
	retries   atomic.Int64
}

func NewRecovery(store common.TokenStore, authClient common.AuthClient, singleFlight bool) *Recovery {
	return &Recovery{
		store:        store,
		auth:         authClient,
		singleFlight: singleFlight,
	}
}

// Refreshes reports how many refresh calls this Recovery issued.
func (r *Recovery) Refreshes() int64 { return r.refreshes.Load() }

// Retries reports how many requests were re-issued after a refresh.
func (r *Recovery) Retries() int64 { return r.retries.Load() }

// Wrap installs the recovery in front of next. It satisfies common.Middleware.
func (r *Recovery) Wrap(next http.RoundTripper) http.RoundTripper {
	return common.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return r.roundTrip(next, req)
	})
}

func (r *Recovery) roundTrip(next http.RoundTripper, req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	pending, err := Capture(req)
	if err != nil {
		return nil, err
	}

	resp, err := next.RoundTrip(pending.Request(ctx))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || pending.Retried {
		return resp, nil
	}

	entry := log.WithFields(log.Fields{"method": pending.Method, "url": pending.URL})

	refreshToken, found, err := r.store.Get(ctx, common.RefreshTokenKey)
	if err != nil {
		entry.WithError(err).Debug("recovery: refresh token lookup failed")
		return resp, nil
	}
	if !found || refreshToken == "" {
		return resp, nil
	}

	pending.Retried = true
	stale := storedTokenSent(pending, resp)
	drain(resp)

	accessToken, err := r.obtain(ctx, refreshToken, stale)
	if err != nil {
		return nil, err
	}
	if accessToken == "" {
		entry.Warn("recovery: refresh produced no access token")
		return nil, ErrRefreshFailed
	}

	retry := pending.Request(ctx)
	retry.Header.Set("Authorization", "Bearer "+accessToken)
	r.retries.Add(1)
	entry.WithField("access_token", logging.Redact(accessToken)).Debug("recovery: retrying with refreshed token")
	return next.RoundTrip(retry)
}

// obtain returns a usable access token, or "" when the refresh endpoint gave none.
func (r *Recovery) obtain(ctx context.Context, refreshToken, staleAccessToken string) (string, error) {
	if !r.singleFlight {
		return r.refresh(ctx, refreshToken)
	}

	// The shared call must not die with whichever caller happened to start it.
	detached := context.WithoutCancel(ctx)
	v, err, shared := r.group.Do(refreshToken, func() (any, error) {
		if current := r.rotated(detached, staleAccessToken); current != "" {
			return current, nil
		}
		return r.refresh(detached, refreshToken)
	})
	if shared {
		log.Debug("recovery: refresh result shared between concurrent requests")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// rotated returns the stored access token if another request already replaced
// the one that was rejected.
func (r *Recovery) rotated(ctx context.Context, staleAccessToken string) string {
	if staleAccessToken == "" {
		return ""
	}
	current, found, err := r.store.Get(ctx, common.AccessTokenKey)
	if err != nil || !found || current == staleAccessToken {
		return ""
	}
	return current
}

func (r *Recovery) refresh(ctx context.Context, refreshToken string) (string, error) {
	r.refreshes.Add(1)
	tok, err := r.auth.RefreshToken(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	if tok == nil {
		return "", nil
	}
	return tok.AccessToken, nil
}

// storedTokenSent is the stored access token the Authenticator attached to the
// rejected request, or "" when the caller supplied its own Authorization
// header. Inner middlewares add the header on a clone, which the transport
// reports back as resp.Request.
func storedTokenSent(pending *PendingRequest, resp *http.Response) string {
	if pending.CallerAuthorized() || resp.Request == nil {
		return ""
	}
	return bearerToken(resp.Request.Header)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
