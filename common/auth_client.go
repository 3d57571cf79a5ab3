package common

import (
	"context"

	"golang.org/x/oauth2"
)

// AuthClient defines the ability to refresh an access token.
//
// The result takes one of three shapes:
//   - (token, nil): the refresh endpoint issued a new access token.
//   - (nil, nil): the endpoint answered but carried no access token.
//   - (nil, err): the refresh call itself failed.
//
// Callers must handle both failure shapes.
type AuthClient interface {
	RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}
