package authapi

import "time"

type requestCodeRequest struct {
	Contact string `json:"contact"`
}

type verifyRequest struct {
	Contact string `json:"contact"`
	Code    string `json:"code"`
}

// tokenRequest is the optional body for session, sync-session, and logout.
// The Authorization header takes precedence when both are present.
type tokenRequest struct {
	Token string `json:"token"`
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"telephone_number"`
	Tokens    int    `json:"tokens"`
}

type sessionPayload struct {
	Token     string    `json:"token"`
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type requestCodeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type verifyResponse struct {
	Success bool           `json:"success"`
	Session sessionPayload `json:"session"`
	User    userResponse   `json:"user"`
}

type sessionCheckResponse struct {
	Valid bool          `json:"valid"`
	User  *userResponse `json:"user,omitempty"`
}

type syncSessionResponse struct {
	Valid   bool            `json:"valid"`
	Session *sessionPayload `json:"session,omitempty"`
	User    *userResponse   `json:"user,omitempty"`
}

type logoutResponse struct {
	Success bool `json:"success"`
}

type failResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type rateLimitedResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	RetryAfterS int64  `json:"retry_after_s"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
