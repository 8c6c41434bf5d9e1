package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer     string // Issuer claim for session tokens (default: farmaline)
	SigningKey string // Required in prod: HMAC key for session tokens, min 32 bytes

	SessionTTL       time.Duration // Session token lifetime (default: 90m)
	LockoutThreshold int           // Failed logins before lockout (default: 5)
	LockoutWindow    time.Duration // Window failures count within (default: 15m)

	TOTPIssuer string // Label shown in authenticator apps (default: Farmaline)
	TOTPPeriod int    // TOTP step in seconds (default: 30)
	TOTPSkew   int    // Accepted steps of clock skew (default: 1)

	AlertInterval         time.Duration // Monitor scan interval (default: 1m)
	AlertWindow           time.Duration // Monitor lookback window (default: 15m)
	AlertIdentityFailures int           // Per-identity failure threshold (default: 5)
	AlertIPFailures       int           // Per-IP failure threshold (default: 15)
	AlertIPSpread         int           // Distinct identifiers per IP threshold (default: 5)
	AlertAuditBurst       int           // Audit records per identity threshold (default: 50)

	DatabaseFile string // Path to SQLite database file (default: ./farmaline.db)
	PepperFile   string // Path to password pepper file (default: ./pepper)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		Issuer:     getEnvOrDefault("FARMALINE_ISSUER", "farmaline"),
		SigningKey: os.Getenv("FARMALINE_SIGNING_KEY"),

		SessionTTL:       getEnvDurationOrDefault("FARMALINE_SESSION_TTL", 90*time.Minute),
		LockoutThreshold: getEnvIntOrDefault("FARMALINE_LOCKOUT_THRESHOLD", 5),
		LockoutWindow:    getEnvDurationOrDefault("FARMALINE_LOCKOUT_WINDOW", 15*time.Minute),

		TOTPIssuer: getEnvOrDefault("FARMALINE_TOTP_ISSUER", "Farmaline"),
		TOTPPeriod: getEnvIntOrDefault("FARMALINE_TOTP_PERIOD", 30),
		TOTPSkew:   getEnvIntOrDefault("FARMALINE_TOTP_SKEW", 1),

		AlertInterval:         getEnvDurationOrDefault("FARMALINE_ALERT_INTERVAL", time.Minute),
		AlertWindow:           getEnvDurationOrDefault("FARMALINE_ALERT_WINDOW", 15*time.Minute),
		AlertIdentityFailures: getEnvIntOrDefault("FARMALINE_ALERT_IDENTITY_FAILURES", 5),
		AlertIPFailures:       getEnvIntOrDefault("FARMALINE_ALERT_IP_FAILURES", 15),
		AlertIPSpread:         getEnvIntOrDefault("FARMALINE_ALERT_IP_SPREAD", 5),
		AlertAuditBurst:       getEnvIntOrDefault("FARMALINE_ALERT_AUDIT_BURST", 50),

		DatabaseFile: getEnvOrDefault("FARMALINE_DATABASE_FILE", "farmaline.db"),
		PepperFile:   getEnvOrDefault("FARMALINE_PEPPER_FILE", "pepper"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are read as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
