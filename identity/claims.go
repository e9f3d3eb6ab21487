package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	errs "github.com/shulebook/shulebook-go/internal/errors"
)

// FromAccessToken derives a User and Session from a raw JWT access token
// without verifying its signature. Verification is the backend's job; the
// client only needs a stable identity key and an expiry hint for its own
// bookkeeping.
func FromAccessToken(raw string) (*User, *Session, error) {
	if raw == "" {
		return nil, nil, errs.ErrMissingAccessToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, nil, errs.Wrapf(errs.ErrInvalidAccessToken, "identity.FromAccessToken: %v", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, nil, errs.Wrapf(errs.ErrInvalidAccessToken, "identity.FromAccessToken: no subject claim")
	}

	email, _ := claims["email"].(string)

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	return &User{ID: sub, Email: email}, &Session{AccessToken: raw, ExpiresAt: expiresAt}, nil
}
