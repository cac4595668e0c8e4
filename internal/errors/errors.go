package errors

import (
	"errors"
	"fmt"
)

// Common error types for the file gateway
var (
	// Credential errors
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrWrongCredentialKind = errors.New("wrong credential kind")

	// Login errors
	ErrLoginNotFound  = errors.New("login not found")
	ErrSignInRejected = errors.New("sign in rejected")

	// Messaging network errors
	ErrUpstreamUnavailable = errors.New("messaging network unavailable")

	// File errors
	ErrNotFound = errors.New("not found")
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
