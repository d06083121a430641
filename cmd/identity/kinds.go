package identity

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidContact = errors.New("invalid_contact")
	ErrNotFound       = errors.New("not_found")
)
