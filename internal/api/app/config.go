package app

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	SecretKey  string // Required: signs session tokens and derives the key-vault cipher key
	CryptoSalt string // Required: salt mixed into the key-vault cipher key

	Issuer       string        // Optional: issuer claim for session tokens (default: keyshare)
	TokenTTL     time.Duration // Optional: session token lifetime (default: 24h)
	DatabaseFile string        // Optional: path to SQLite database file (default: ./keyshare.db)

	SMTPHost     string // Optional: SMTP relay host; emails are logged as failed when unset
	SMTPPort     int    // Optional: SMTP relay port (default: 587)
	SMTPUsername string // Optional: SMTP auth username
	SMTPPassword string // Optional: SMTP auth password
	SMTPFrom     string // Optional: From address for outbound mail
	FrontendURL  string // Optional: base URL for links embedded in emails

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	CookieSecure         bool          // Set the Secure flag on session cookies (default: true outside dev)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired token sweep interval (default: 1h)
}

func LoadConfig() (Config, error) {
	cfg := Config{
		SecretKey:            os.Getenv("SECRET_KEY"),
		CryptoSalt:           os.Getenv("CRYPTO_SALT"),
		Issuer:               getEnvOrDefault("TOKEN_ISSUER", "keyshare"),
		TokenTTL:             getEnvDurationOrDefault("TOKEN_TTL", 24*time.Hour),
		DatabaseFile:         getEnvOrDefault("DATABASE_FILE", "keyshare.db"),
		SMTPHost:             os.Getenv("SMTP_HOST"),
		SMTPPort:             getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUsername:         os.Getenv("SMTP_USERNAME"),
		SMTPPassword:         os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:             getEnvOrDefault("SMTP_FROM", "no-reply@keyshare.local"),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	cfg.CookieSecure = cfg.Env != "dev"
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		cfg.CookieSecure = v == "true"
	}

	if cfg.SecretKey == "" {
		return cfg, errors.New("SECRET_KEY is required")
	}
	if cfg.CryptoSalt == "" {
		return cfg, errors.New("CRYPTO_SALT is required")
	}

	return cfg, nil
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

	// Plain integers are read as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
