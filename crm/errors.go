/*
errors.go - Error taxonomy for the CRM core

PURPOSE:
  All error types in one place. Services return these (possibly wrapped);
  the HTTP layer maps them to status codes with errors.Is.

ERROR CATEGORIES:
  ErrUnauthenticated  no valid session                       -> 401
  ErrForbidden        role too low or other location         -> 403
  ErrValidation       missing/malformed field                -> 400
  ErrNotFound         missing or not visible to the caller   -> 404
  ErrConflict         state prevents the write               -> 409
  anything else       persistence failure                    -> 500

USAGE:
  if errors.Is(err, crm.ErrNotFound) { ... }

  var vErr *crm.ValidationError
  if errors.As(err, &vErr) { log(vErr.Field) }

SEE ALSO:
  - api/handlers.go: statusFor maps these to HTTP
*/
package crm

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnauthenticated is returned when no identity is attached to the call.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden is returned for insufficient role or cross-location access.
	ErrForbidden = errors.New("access denied")

	// ErrValidation is returned for missing or malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced row does not exist or is not
	// visible to the caller's location.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when current state blocks the write.
	ErrConflict = errors.New("conflict")

	// ErrInvalidCredentials is returned by login on a bad email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// AccessError records a denied cross-location access.
type AccessError struct {
	Entity string
	ID     int64
	Reason string
}

func (e *AccessError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("access denied: %s", e.Reason)
	}
	return fmt.Sprintf("access denied to %s %d: %s", e.Entity, e.ID, e.Reason)
}

func (e *AccessError) Unwrap() error { return ErrForbidden }

// ConflictError reports state that blocks a write.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Conflict builds a ConflictError.
func Conflict(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to caller input or access.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidCredentials)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
