package auth

import (
	"fmt"
	"time"

	jwtgo "github.com/golang-jwt/jwt/v5"
)

// Claims is what the client can read from an access token without the server's key.
type Claims struct {
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Inspect decodes an access token's claims without verifying its signature.
// The result is for display and diagnostics only; the server stays the
// authority on whether a token is valid.
func Inspect(accessToken string) (Claims, error) {
	claims := jwtgo.MapClaims{}
	if _, _, err := jwtgo.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return Claims{}, fmt.Errorf("failed to decode access token: %w", err)
	}

	out := Claims{}
	out.Subject, _ = claims.GetSubject()
	out.Role, _ = claims["role"].(string)
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}
