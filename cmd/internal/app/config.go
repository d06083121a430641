package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// Postgres backend. When set, it takes precedence over the record
	// store.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// External tabular record store backend (HTTP REST).
	RecordStoreBase  string
	RecordStoreToken string
	UsersTable       string
	SessionsTable    string
	SessionsUserLink string

	// Cross-origin policy for the auth endpoints and the websocket
	// gateway.
	AllowedOrigins []string
	PreviewSuffix  string
	AllowLocalhost bool

	// Notification webhooks for code delivery.
	EmailWebhookURL string
	SMSWebhookURL   string

	// If true, /readyz returns 503 unless a persistence backend is
	// configured and reachable.
	ReadinessRequireDB bool

	// If true, CODEGATE_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and
	// bearer-token hashing must be HMAC-based.
	RequireTokenHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("CODEGATE_HTTP_ADDR", "0.0.0.0:7500"),
		LogLevel: EnvString("CODEGATE_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("CODEGATE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("CODEGATE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("CODEGATE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("CODEGATE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("CODEGATE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("CODEGATE_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("CODEGATE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("CODEGATE_DB_MIN_CONNS", 0),

		RecordStoreBase:  EnvString("CODEGATE_RECORDSTORE_BASE", ""),
		RecordStoreToken: EnvString("CODEGATE_RECORDSTORE_TOKEN", ""),
		UsersTable:       EnvString("CODEGATE_RECORDSTORE_USERS_TABLE", "users"),
		SessionsTable:    EnvString("CODEGATE_RECORDSTORE_SESSIONS_TABLE", "sessions"),
		SessionsUserLink: EnvString("CODEGATE_RECORDSTORE_SESSIONS_USER_LINK", ""),

		AllowedOrigins: EnvCSV("CODEGATE_ALLOWED_ORIGINS", nil),
		PreviewSuffix:  EnvString("CODEGATE_PREVIEW_SUFFIX", ""),
		AllowLocalhost: EnvBool("CODEGATE_ALLOW_LOCALHOST", true),

		EmailWebhookURL: EnvString("CODEGATE_EMAIL_WEBHOOK", ""),
		SMSWebhookURL:   EnvString("CODEGATE_SMS_WEBHOOK", ""),

		ReadinessRequireDB: EnvBool("CODEGATE_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("CODEGATE_REQUIRE_TOKEN_HMAC", false),
	}
}
