package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// DefaultCountryCode is prepended to local-format phone numbers.
	DefaultCountryCode string

	// Coarse limiter on code-request traffic, keyed by client IP.
	RequestCodeMax    int
	RequestCodeWindow time.Duration

	// Strict limiter on code-verification attempts, keyed by client IP.
	// This is the only throttle guarding the six-digit code space.
	VerifyMax    int
	VerifyWindow time.Duration
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:         envBool("CODEGATE_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:       envInt64("CODEGATE_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		DefaultCountryCode: envString("CODEGATE_DEFAULT_COUNTRY_CODE", "+49"),
		RequestCodeMax:     envInt("CODEGATE_AUTH_REQUEST_CODE_MAX", 5),
		RequestCodeWindow:  envDuration("CODEGATE_AUTH_REQUEST_CODE_WINDOW", 15*time.Minute),
		VerifyMax:          envInt("CODEGATE_AUTH_VERIFY_MAX", 5),
		VerifyWindow:       envDuration("CODEGATE_AUTH_VERIFY_WINDOW", 15*time.Minute),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if !strings.HasPrefix(cfg.DefaultCountryCode, "+") {
		cfg.DefaultCountryCode = "+" + strings.TrimLeft(cfg.DefaultCountryCode, "+0 ")
	}

	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
