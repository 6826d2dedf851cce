// Package errdefs defines the error kinds shared by services and handlers.
package errdefs

import (
	"errors"
	"fmt"
)

// Error kinds. Domain errors wrap exactly one of these so callers can
// classify them with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("permission denied")
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrConflict        = errors.New("conflict")
)

type domainError struct {
	kind    error
	message string
}

func (e *domainError) Error() string { return e.message }

func (e *domainError) Unwrap() error { return e.kind }

// New builds a domain error of the given kind carrying a client-facing message.
func New(kind error, message string) error {
	return &domainError{kind: kind, message: message}
}

// Newf is New with formatting.
func Newf(kind error, format string, args ...interface{}) error {
	return &domainError{kind: kind, message: fmt.Sprintf(format, args...)}
}

// Kind returns the taxonomy kind of err, or nil for unexpected errors.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrUnauthenticated, ErrForbidden, ErrNotFound, ErrInvalidState, ErrConflict} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
