// Package navigation redirects the user between routes and remembers where an
// unauthenticated user was headed.
package navigation

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/guarzo/staybook/common"
)

// DefaultLoginRoute is the login entry point.
const DefaultLoginRoute = "/login"

// Navigator moves the user to a route.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// NavigatorFunc adapts an ordinary function to Navigator.
type NavigatorFunc func(ctx context.Context, path string)

func (f NavigatorFunc) Navigate(ctx context.Context, path string) {
	f(ctx, path)
}

// LogNavigator only records the redirect; headless callers decide what a route means.
type LogNavigator struct{}

func (LogNavigator) Navigate(_ context.Context, path string) {
	log.WithField("path", path).Info("redirecting")
}

// Tracker keeps redirect_path in the token store: every visited route is
// remembered while no access token is present, and the entry is cleared as soon
// as one is. It then hands the navigation to the wrapped Navigator.
type Tracker struct {
	store      common.TokenStore
	next       Navigator
	loginRoute string
}

func NewTracker(store common.TokenStore, next Navigator, loginRoute string) *Tracker {
	if next == nil {
		next = LogNavigator{}
	}
	if loginRoute == "" {
		loginRoute = DefaultLoginRoute
	}
	return &Tracker{store: store, next: next, loginRoute: loginRoute}
}

// LoginRoute is where forced sign-outs land.
func (t *Tracker) LoginRoute() string {
	return t.loginRoute
}

func (t *Tracker) Navigate(ctx context.Context, path string) {
	t.Visit(ctx, path)
	t.next.Navigate(ctx, path)
}

// Visit records path as the current route. The login route itself is never
// remembered so that resuming after sign-in does not loop back to it.
func (t *Tracker) Visit(ctx context.Context, path string) {
	entry := log.WithField("path", path)

	_, hasToken, err := t.store.Get(ctx, common.AccessTokenKey)
	if err != nil {
		entry.WithError(err).Debug("redirect tracking: token lookup failed")
		return
	}
	if hasToken {
		if err = t.store.Delete(ctx, common.RedirectPathKey); err != nil {
			entry.WithError(err).Debug("redirect tracking: clear failed")
		}
		return
	}
	if path == "" || path == t.loginRoute {
		return
	}
	if err = t.store.Set(ctx, common.RedirectPathKey, path, 0); err != nil {
		entry.WithError(err).Debug("redirect tracking: save failed")
	}
}

// ResumePath returns the remembered route, or "/" if there is none.
func (t *Tracker) ResumePath(ctx context.Context) string {
	path, found, err := t.store.Get(ctx, common.RedirectPathKey)
	if err != nil || !found || path == "" {
		return "/"
	}
	return path
}
