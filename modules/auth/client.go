// Package auth is the authenticated side of the HTTP client: it attaches bearer
// credentials to outbound requests, recovers from access-token expiry through a
// refresh call, and signs the user out when recovery is impossible.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/guarzo/staybook/common"
	"github.com/guarzo/staybook/common/model"
	"github.com/guarzo/staybook/modules/session"
)

// DefaultRefreshPath is appended to the API base URL for refresh calls.
const DefaultRefreshPath = "/auth/refresh"

// Options configure NewClient.
type Options struct {
	BaseURL     string
	RefreshPath string
	UserAgent   string
	Timeout     time.Duration

	// DisableSingleFlight lets every 401 trigger its own refresh call.
	DisableSingleFlight bool

	// Transport is the innermost RoundTripper; nil means http.DefaultTransport.
	Transport http.RoundTripper

	Deps
}

// Client is an HttpClient with the authenticator and recovery middlewares
// installed, constructed once at start-up.
type Client struct {
	common.HttpClient

	refresher *Refresher
	recovery  *Recovery
	deps      Deps
}

func NewClient(opts Options) (*Client, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("auth: token store is required")
	}
	refreshPath := opts.RefreshPath
	if refreshPath == "" {
		refreshPath = DefaultRefreshPath
	}
	endpoint, err := url.JoinPath(opts.BaseURL, refreshPath)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid refresh endpoint: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = common.DefaultTimeout
	}

	deps := opts.Deps.withDefaults()

	// The refresh call goes out on a transport without the auth middlewares.
	refreshClient := &http.Client{
		Transport: common.Chain(opts.Transport, opts.UserAgent),
		Timeout:   timeout,
	}
	refresher := NewRefresher(endpoint, refreshClient, deps)
	recovery := NewRecovery(deps.Store, refresher, !opts.DisableSingleFlight)
	authenticator := NewAuthenticator(deps.Store)

	hc := common.NewHttpClient(opts.UserAgent, &http.Client{
		Transport: opts.Transport,
		Timeout:   timeout,
	}, recovery.Wrap, authenticator.Wrap)

	return &Client{
		HttpClient: hc,
		refresher:  refresher,
		recovery:   recovery,
		deps:       deps,
	}, nil
}

// Login persists a newly issued credential pair and marks the session signed in.
func (c *Client) Login(ctx context.Context, accessToken, refreshToken string, user *model.User) error {
	if accessToken == "" {
		return fmt.Errorf("auth: login response carried no access token")
	}
	if err := StoreCredentials(ctx, c.deps.Store, accessToken, refreshToken); err != nil {
		return fmt.Errorf("auth: failed to persist credentials: %w", err)
	}
	c.deps.Session.Login(user)
	return nil
}

// Restore marks the session signed in when a token survived from an earlier run.
// It reports whether a session was restored.
func (c *Client) Restore(ctx context.Context) (bool, error) {
	_, hasAccess, err := c.deps.Store.Get(ctx, common.AccessTokenKey)
	if err != nil {
		return false, err
	}
	_, hasRefresh, err := c.deps.Store.Get(ctx, common.RefreshTokenKey)
	if err != nil {
		return false, err
	}
	if !hasAccess && !hasRefresh {
		return false, nil
	}
	if !c.deps.Session.IsAuthenticated() {
		c.deps.Session.Login(c.deps.Session.CurrentUser())
	}
	return true, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	return SignOut(ctx, c.deps.Store, c.deps.Session)
}

func (c *Client) Session() *session.Session { return c.deps.Session }

func (c *Client) Store() common.TokenStore { return c.deps.Store }

func (c *Client) Refresher() *Refresher { return c.refresher }

func (c *Client) Recovery() *Recovery { return c.recovery }
