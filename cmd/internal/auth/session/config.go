package session

import (
	"os"
	"strconv"
	"time"
)

// Config defines all runtime configuration for the session subsystem.
//
// It controls session lifetime, one-time-code lifetime, and the entropy
// sizes of bearer tokens and session ids.
//
// This struct is intentionally explicit and environment-driven so that
// production deployments can tune security parameters without code changes.
type Config struct {
	// SessionTTL is the fixed offset from creation to expiry.
	SessionTTL time.Duration

	// CodeTTL bounds how long a pending one-time code stays redeemable.
	CodeTTL time.Duration

	// TokenBytes is the number of random bytes behind a bearer token
	// (rendered as 2x hex characters).
	TokenBytes int

	// SessionIDBytes is the number of random bytes behind the opaque
	// session id (rendered base64url).
	SessionIDBytes int
}

// DefaultConfig returns a secure default configuration.
func DefaultConfig() Config {
	return Config{
		SessionTTL:     48 * time.Hour,
		CodeTTL:        10 * time.Minute,
		TokenBytes:     48,
		SessionIDBytes: 32,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional (durations must be valid Go duration strings):
//   - CODEGATE_SESSION_TTL
//   - CODEGATE_AUTH_CODE_TTL
//   - CODEGATE_SESSION_TOKEN_BYTES
//   - CODEGATE_SESSION_ID_BYTES
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("CODEGATE_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.SessionTTL = d
	}

	if v := os.Getenv("CODEGATE_AUTH_CODE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.CodeTTL = d
	}

	if v := os.Getenv("CODEGATE_SESSION_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 48 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.TokenBytes = n
	}

	if v := os.Getenv("CODEGATE_SESSION_ID_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 16 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.SessionIDBytes = n
	}

	return cfg, nil
}
