package session

import "errors"

var (
	// ErrBadCode is returned when the submitted one-time code does not match
	// the pending code, or the pending code is missing or expired.
	ErrBadCode = errors.New("bad code")

	// ErrSessionNotFound is returned when a bearer token does not match any session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when the session is past its expiry.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionRevoked is returned when the session has been revoked.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
