package auth

import (
	"errors"
	"fmt"
)

// Authentication failures. Each maps to a distinct caller-visible condition;
// the HTTP layer translates them, nothing here knows about status codes.
var (
	// ErrInvalidToken covers both a non-200 introspection response and an
	// inactive token result.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrInvalidAPIKey covers a missing, revoked, expired, or deleted key.
	ErrInvalidAPIKey = errors.New("invalid or expired API key")

	// ErrPrincipalNotFound means the identity provider accepted the token but
	// the subject does not resolve to a local account.
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrProviderUnavailable means the introspection call timed out or failed
	// at the transport level. Distinct from ErrInvalidToken: the token was
	// never evaluated. Not retried within the request.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

// ForbiddenError is an authorization failure carrying the permission code
// the principal lacked.
type ForbiddenError struct {
	Code string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("Permission `%s` required", e.Code)
}
