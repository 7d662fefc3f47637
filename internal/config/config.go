package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment names recognized in APP_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Rate-limit windows applied to guest provisioning when RATE_LIMIT_WINDOW
// is not set explicitly. Development uses a short window so local refresh
// loops stay usable; production widens it for abuse resistance.
const (
	devRateLimitWindow  = 10 * time.Second
	prodRateLimitWindow = 30 * time.Second
)

// Config holds all configuration for the server
type Config struct {
	// Server settings
	Port        int
	CORSOrigins []string

	// Environment: "development" or "production". Controls cookie
	// security attributes and the default rate-limit window.
	Env string

	// Database. An empty DSN means no durable store is configured and
	// the server runs entirely against the in-memory fallback store.
	DatabaseDSN    string
	DatabaseDriver string // "postgres" or "sqlite", auto-detected from DSN

	// Authentication
	AuthSecret []byte // HMAC secret for signed session tokens

	// Guest provisioning rate limit
	RateLimitWindow time.Duration
	// When true (the default), clients whose origin cannot be determined
	// all share a single "unknown" bucket so they cannot bypass
	// throttling individually. When false they are exempted instead.
	RateLimitSharedUnknownBucket bool

	// Logging
	LogLevel  string
	LogFormat string // "json" or "console"
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	// Server
	cfg.Port = getEnvInt("PORT", 8080)
	cfg.CORSOrigins = getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"})

	cfg.Env = getEnv("APP_ENV", EnvDevelopment)
	if cfg.Env != EnvDevelopment && cfg.Env != EnvProduction {
		return nil, fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, cfg.Env)
	}

	// Database (optional; empty activates fallback-only mode)
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", "")
	cfg.DatabaseDriver = detectDriver(cfg.DatabaseDSN)

	// Session token secret
	secret := getEnv("AUTH_SECRET", "")
	if secret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("AUTH_SECRET is required when APP_ENV=production")
		}
		// Default for local development only; tokens signed with this
		// secret are not secure.
		secret = "parlor-dev-auth-secret-not-for-production"
	}
	cfg.AuthSecret = []byte(secret)

	// Guest provisioning rate limit
	defaultWindow := devRateLimitWindow
	if cfg.IsProduction() {
		defaultWindow = prodRateLimitWindow
	}
	cfg.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", defaultWindow)
	cfg.RateLimitSharedUnknownBucket = getEnvBool("RATE_LIMIT_SHARED_UNKNOWN_BUCKET", true)

	// Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "console")

	return cfg, nil
}

// IsProduction returns true when APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// SecureCookies returns whether cookies should carry the Secure attribute.
func (c *Config) SecureCookies() bool {
	return c.IsProduction()
}

// HasDatabase returns true when a durable store DSN is configured.
func (c *Config) HasDatabase() bool {
	return c.DatabaseDSN != ""
}

// detectDriver determines the database driver from DSN
func detectDriver(dsn string) string {
	if dsn == "" {
		return ""
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.HasPrefix(dsn, "sqlite3://") || strings.HasPrefix(dsn, "sqlite://") {
		return "sqlite"
	}
	// Default to sqlite for file paths
	if strings.HasSuffix(dsn, ".db") || strings.HasSuffix(dsn, ".sqlite") {
		return "sqlite"
	}
	return "postgres"
}

// CleanDSN removes the driver prefix from DSN for the database driver
func (c *Config) CleanDSN() string {
	dsn := c.DatabaseDSN
	dsn = strings.TrimPrefix(dsn, "postgres://")
	dsn = strings.TrimPrefix(dsn, "postgresql://")
	dsn = strings.TrimPrefix(dsn, "sqlite3://")
	dsn = strings.TrimPrefix(dsn, "sqlite://")

	// For postgres, add the prefix back
	if c.DatabaseDriver == "postgres" {
		return "postgres://" + dsn
	}
	return dsn
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
