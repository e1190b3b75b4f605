package errors

import (
	"errors"
	"fmt"
)

// Common error types for the token service
var (
	// Configuration errors are fatal at startup, never per-request
	ErrConfig = errors.New("invalid configuration")

	// Transport errors
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidSession is the single outward-facing authentication failure.
	// Specific lifecycle reasons are collapsed into it at the transport boundary.
	ErrInvalidSession = errors.New("invalid or expired session")

	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
