package auth

import (
	"net/http"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/guarzo/staybook/common"
)

// Authenticator attaches the stored access token as a bearer credential to
// every request that does not carry its own Authorization header. A missing
// token leaves the request unauthenticated and lets the server reject it.
type Authenticator struct {
	store common.TokenStore
}

func NewAuthenticator(store common.TokenStore) *Authenticator {
	return &Authenticator{store: store}
}

// Wrap installs the authenticator in front of next. It satisfies common.Middleware.
func (a *Authenticator) Wrap(next http.RoundTripper) http.RoundTripper {
	return common.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("Authorization") != "" {
			return next.RoundTrip(req)
		}

		accessToken, found, err := a.store.Get(req.Context(), common.AccessTokenKey)
		if err != nil {
			log.WithError(err).Debug("authenticator: token lookup failed, sending unauthenticated")
			return next.RoundTrip(req)
		}
		if !found || accessToken == "" {
			return next.RoundTrip(req)
		}

		clone := req.Clone(req.Context())
		(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(clone)
		return next.RoundTrip(clone)
	})
}
