package errors

import (
	"errors"
	"fmt"
)

// Common error types for the knowledge-base API client
var (
	// Credential errors
	ErrNoCredentials      = errors.New("no stored credentials")
	ErrNoRefreshToken     = errors.New("no refresh token available")
	ErrAuthExpired        = errors.New("authentication expired")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Transport errors
	ErrRequestTimeout = errors.New("request timed out")
	ErrUnreachable    = errors.New("server unreachable")

	// Store errors
	ErrKeyNotFound = errors.New("key not found")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
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
