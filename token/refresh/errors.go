package refresh

import (
	"errors"
)

// Lifecycle error kinds. All are terminal for the call. Only ErrConcurrentReuse
// reflects a transient race a caller may retry.
var (
	ErrInvalidToken     = errors.New("invalid refresh token")
	ErrInactiveToken    = errors.New("refresh token is not active")
	ErrSuspiciousReuse  = errors.New("refresh token reused from a different origin")
	ErrStaleCredentials = errors.New("security stamp changed since issuance")
	ErrConcurrentReuse  = errors.New("refresh token concurrently rotated or revoked")
	ErrNotFound         = errors.New("refresh token not found")
	ErrUnknownSubject   = errors.New("unknown subject")

	// Specific reasons a token is inactive. Each also matches ErrInactiveToken.
	ErrAlreadyRevoked error = &inactiveError{reason: "refresh token already revoked"}
	ErrAlreadyRotated error = &inactiveError{reason: "refresh token already rotated"}
	ErrExpired        error = &inactiveError{reason: "refresh token expired"}
)

type inactiveError struct {
	reason string
}

func (e *inactiveError) Error() string {
	return e.reason
}

func (e *inactiveError) Is(target error) bool {
	return target == ErrInactiveToken
}

// IsRetryable reports whether err is a transient rotation race
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentReuse)
}
