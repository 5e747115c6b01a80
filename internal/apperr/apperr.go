// Package apperr defines the terminal error outcomes surfaced by the core
// services. None of these are retried internally; callers map them onto their
// transport of choice.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated indicates the request carried no principal.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden indicates the principal lacks rights for this resource.
	ErrForbidden = errors.New("permission denied")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrValidation indicates a malformed request or a business-rule violation.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the attempted write would violate a uniqueness
	// constraint, either redundantly or from a lost race.
	ErrConflict = errors.New("record conflict")
)

// Validationf wraps ErrValidation with a caller-facing reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// Forbiddenf wraps ErrForbidden with a caller-facing reason.
func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrForbidden}, args...)...)
}
