package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/opsdeck/opsdeck/internal/common/apperrors"
)

// TokenExpiry decodes the expiry claim of a bearer token without verifying
// its signature. The decoded expiry drives proactive session teardown and is
// never an authorization boundary; the server remains the sole authority on
// token validity.
func TokenExpiry(token string) (time.Time, apperrors.Error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, ErrTokenDecode.Err(err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, ErrTokenDecode.Err(err)
	}
	if exp == nil {
		return time.Time{}, ErrTokenDecode.Msg("token has no expiry claim")
	}

	return exp.Time, nil
}

// expired reports whether an expiry timestamp is at or before now.
// The boundary is inclusive: a token expiring exactly now is expired.
func expired(expiry time.Time, now time.Time) bool {
	return !expiry.After(now)
}
