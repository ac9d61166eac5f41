package errors

import (
	"errors"
	"fmt"
)

// Common error types for the portal
var (
	// Authentication errors
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrSessionEnded       = fmt.Errorf("%w, session ended", ErrUnauthenticated)
	ErrNoRefreshToken     = fmt.Errorf("%w: no refresh token", ErrUnauthenticated)
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Authorization errors
	ErrRoleMismatch = errors.New("role mismatch")
	ErrForbidden    = errors.New("forbidden")

	// Backend errors
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrMalformedResponse = errors.New("malformed response")
	ErrTransport         = errors.New("transport failure")
	ErrUnexpected        = errors.New("unexpected failure")

	// Storage errors
	ErrStorage = errors.New("credential storage failure")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers only import this package
func New(text string) error {
	return errors.New(text)
}
