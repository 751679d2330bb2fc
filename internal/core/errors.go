package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound covers both missing ids and soft-deleted entities read through
// the default scope.
var ErrNotFound = errors.New("not found")

// ErrInvalidCredentials is returned by login when the username/password pair
// does not match a live, active account.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ValidationError rejects a request before any mutation is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

// ConflictError reports a natural-key collision with a soft-deleted row.
// Creation never silently resurrects or duplicates; the caller is expected
// to restore the existing entity explicitly.
type ConflictError struct {
	Field      string
	Value      string
	ExistingID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("a soft-deleted record with %s %q already exists (id %s); restore it instead of creating a duplicate", e.Field, e.Value, e.ExistingID)
}

// DuplicateError reports a natural-key collision with a live row, surfaced
// when an update trips a partial unique index.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("a record with %s %q already exists", e.Field, e.Value)
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// PrincipalResolutionError means the acting principal's backing account could
// not be re-resolved at audit-write time (e.g. deleted mid-request). The
// enclosing mutation is rolled back; it never completes without its revision.
type PrincipalResolutionError struct {
	Username string
}

func (e *PrincipalResolutionError) Error() string {
	return fmt.Sprintf("audit: acting principal %q no longer resolves to a live account", e.Username)
}
