package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/guarzo/staybook/common"
	"github.com/guarzo/staybook/common/logging"
	"github.com/guarzo/staybook/common/model"
	"github.com/guarzo/staybook/modules/navigation"
	"github.com/guarzo/staybook/modules/notify"
	"github.com/guarzo/staybook/modules/session"
)

// Deps are the collaborators the refresh and sign-out paths act on.
type Deps struct {
	Store      common.TokenStore
	Session    *session.Session
	Notifier   notify.Notifier
	Navigator  navigation.Navigator
	LoginRoute string
}

func (d Deps) withDefaults() Deps {
	if d.Session == nil {
		d.Session = session.New()
	}
	if d.Notifier == nil {
		d.Notifier = notify.LogNotifier{}
	}
	if d.Navigator == nil {
		d.Navigator = navigation.LogNavigator{}
	}
	if d.LoginRoute == "" {
		d.LoginRoute = navigation.DefaultLoginRoute
	}
	return d
}

var _ common.AuthClient = (*Refresher)(nil)

// Refresher exchanges a refresh token for a new access token at a fixed endpoint.
// It does not deduplicate concurrent calls; see Recovery for that.
type Refresher struct {
	endpoint string
	client   *http.Client
	deps     Deps
	now      func() time.Time
}

// NewRefresher builds a Refresher posting to endpoint through client. The client
// must not carry the auth middlewares, or a failing refresh would recurse.
func NewRefresher(endpoint string, client *http.Client, deps Deps) *Refresher {
	if client == nil {
		client = &http.Client{Timeout: common.DefaultTimeout}
	}
	return &Refresher{
		endpoint: endpoint,
		client:   client,
		deps:     deps.withDefaults(),
		now:      time.Now,
	}
}

// RefreshToken posts {"refreshToken": ...} and accepts any HTTP status; success is
// decided only by a non-empty data.accessToken in the payload.
//
// It returns (nil, nil) when the payload carries no access token and (nil, err)
// when the call itself fails. Both cases first notify the user, sign out and
// navigate to the login route.
func (r *Refresher) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	entry := log.WithField("refresh_token", logging.Redact(refreshToken))

	data, err := r.post(ctx, refreshToken)
	if err != nil {
		entry.WithError(err).Warn("token refresh request failed")
		r.expire(ctx, err)
		return nil, err
	}

	accessToken := gjson.GetBytes(data, "data.accessToken").String()
	if accessToken == "" {
		entry.WithField("code", gjson.GetBytes(data, "code").Value()).Warn("token refresh returned no access token")
		r.expire(ctx, nil)
		return nil, nil
	}

	tok := &oauth2.Token{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		RefreshToken: refreshToken,
		Expiry:       r.now().Add(common.AccessTokenTTL),
	}
	if rotated := gjson.GetBytes(data, "data.refreshToken").String(); rotated != "" {
		tok.RefreshToken = rotated
	}

	if err = StoreCredentials(ctx, r.deps.Store, tok.AccessToken, rotatedOnly(tok.RefreshToken, refreshToken)); err != nil {
		// The caller still gets the token for its retry; the next request will refresh again.
		entry.WithError(err).Warn("failed to persist refreshed token")
	}
	entry = entry.WithField("access_token", logging.Redact(accessToken))
	if claims, err := Inspect(accessToken); err == nil && !claims.ExpiresAt.IsZero() {
		entry = entry.WithField("server_expiry", claims.ExpiresAt)
	}
	entry.Debug("access token refreshed")
	return tok, nil
}

func (r *Refresher) post(ctx context.Context, refreshToken string) ([]byte, error) {
	body, err := json.Marshal(model.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, fmt.Errorf("failed to encode refresh request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute refresh request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read refresh response: %w", err)
	}
	return data, nil
}

// expire runs the session-expired side effects: notify, sign out, then redirect.
// A call abandoned by its own caller is not an expired session and is left alone.
func (r *Refresher) expire(ctx context.Context, cause error) {
	if cause != nil && (errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded)) && ctx.Err() != nil {
		return
	}
	r.deps.Notifier.Notify(ctx, notify.LevelWarning, notify.SessionExpiredMessage)
	_ = SignOut(ctx, r.deps.Store, r.deps.Session)
	r.deps.Navigator.Navigate(ctx, r.deps.LoginRoute)
}

func rotatedOnly(next, prev string) string {
	if next == prev {
		return ""
	}
	return next
}
