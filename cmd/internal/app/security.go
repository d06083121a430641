package app

import (
	"errors"

	"codegate/cmd/security/token"
)

// ValidateSecurityConfig enforces the deployment's security policy at
// startup. Fail-fast: a production instance must never fall back to
// plain SHA-256 token hashing when HMAC was demanded.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	// 32 bytes minimum for an HMAC-SHA256 secret, measured as raw bytes.
	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: CODEGATE_REQUIRE_TOKEN_HMAC=true but CODEGATE_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: CODEGATE_REQUIRE_TOKEN_HMAC=true but CODEGATE_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	if !token.HMACEnabled() {
		return errors.New("security policy: CODEGATE_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}

	return nil
}
