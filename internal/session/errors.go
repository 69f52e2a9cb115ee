package session

import (
	"net/http"

	"github.com/opsdeck/opsdeck/internal/common/apperrors"
)

// Base session error
var (
	ErrSession apperrors.Error = apperrors.New("session error").SetStatusCode(http.StatusInternalServerError)
)

// Token and lifecycle errors
var (
	ErrTokenDecode    apperrors.Error = ErrSession.New("unable to decode session token").SetStatusCode(http.StatusUnauthorized)
	ErrSessionExpired apperrors.Error = ErrSession.New("session expired").SetStatusCode(http.StatusUnauthorized)
	ErrLoginFailed    apperrors.Error = ErrSession.New("login failed").SetStatusCode(http.StatusUnauthorized)
	ErrSessionPersist apperrors.Error = ErrSession.New("unable to persist session").SetStatusCode(http.StatusInternalServerError)
)
