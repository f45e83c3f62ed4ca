package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")
)

// ErrInvalidToken indicates the bearer token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// ResolutionError wraps a store failure encountered while resolving an
// authorization context. Only surfaced when the resolver runs in strict mode.
type ResolutionError struct {
	PrincipalID string
	Err         error
}

func (e *ResolutionError) Error() string {
	return "auth: resolve context for " + e.PrincipalID + ": " + e.Err.Error()
}

func (e *ResolutionError) Unwrap() error { return e.Err }
