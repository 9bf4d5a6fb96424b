package service

import (
	"errors"
	"fmt"
)

// Auth error taxonomy. Handlers switch on these with errors.Is; the message
// of the sentinel is what clients see.
var (
	ErrBadRequest              = errors.New("bad request")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrPrincipalNotFound       = errors.New("principal not found")
	ErrPrincipalExists         = errors.New("principal with this username or email already exists")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrRefreshTokenReused      = errors.New("refresh token reused")
	ErrCorruptCredentialRecord = errors.New("corrupt credential record")
	ErrRateLimited             = errors.New("too many login attempts")
)

var (
	errMissingToken    = errors.New("token is missing")
	errNoActiveSession = errors.New("no active session")
)

// unauthorized keeps the precise cause for logs while surfacing ErrUnauthorized.
func unauthorized(cause error) error {
	return fmt.Errorf("%w: %w", ErrUnauthorized, cause)
}

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, msg)
}
