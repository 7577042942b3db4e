package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opsarea/userd/pkg/jwtx"
)

type Config struct {
	Issuer        string // Required: issuer claim for minted tokens
	Audience      string // Required: audience claim for minted tokens
	JWTSecret     string // Required: symmetric signing secret (>= 32 bytes)
	RoleClaimType string // Optional: claim type used for the role claim (default: role)

	AccessTokenTTL  time.Duration // Optional: access token lifetime (default: 1h)
	RefreshTokenTTL time.Duration // Optional: refresh token lifetime (default: 168h)

	DatabaseFile      string   // Optional: path to the primary SQLite database file (default: ./users.db)
	AuditDatabaseFile string   // Optional: path to the request-audit SQLite database file (default: ./audit.db)
	AuditDenylist     []string // Optional: path substrings excluded from request auditing
	PepperFile        string   // Optional: path to file containing pepper for password hashing (default: ./pepper)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

const defaultAuditDenylist = "swagger,favicon.ico,hangfire,livez,readyz,metrics"

func LoadConfig() Config {
	cfg := Config{
		Issuer:        getEnvOrDefault("USERD_ISSUER", "userd"),
		Audience:      getEnvOrDefault("USERD_AUDIENCE", "userd-clients"),
		JWTSecret:     os.Getenv("USERD_JWT_SECRET"),
		RoleClaimType: getEnvOrDefault("USERD_ROLE_CLAIM_TYPE", "role"),

		AccessTokenTTL:  getEnvDurationOrDefault("USERD_ACCESS_TOKEN_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTokenTTL: getEnvDurationOrDefault("USERD_REFRESH_TOKEN_TTL", jwtx.DefaultRefreshTokenTTL),

		DatabaseFile:      getEnvOrDefault("USERD_DATABASE_FILE", "users.db"),
		AuditDatabaseFile: getEnvOrDefault("USERD_AUDIT_DATABASE_FILE", "audit.db"),
		PepperFile:        getEnvOrDefault("USERD_PEPPER_FILE", "pepper"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	denylist := getEnvOrDefault("USERD_AUDIT_DENYLIST", defaultAuditDenylist)
	for _, entry := range strings.Split(denylist, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			cfg.AuditDenylist = append(cfg.AuditDenylist, entry)
		}
	}

	return cfg
}

// Validate checks the settings that would otherwise only fail deep inside
// startup, so misconfiguration is reported before anything is opened.
func (cfg Config) Validate() error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("USERD_JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < jwtx.MinSecretBytes {
		return fmt.Errorf("USERD_JWT_SECRET must be at least %d bytes, got %d",
			jwtx.MinSecretBytes, len(cfg.JWTSecret))
	}
	if cfg.Issuer == "" {
		return fmt.Errorf("USERD_ISSUER must not be empty")
	}
	if cfg.Audience == "" {
		return fmt.Errorf("USERD_AUDIENCE must not be empty")
	}
	if cfg.RoleClaimType == "" {
		return fmt.Errorf("USERD_ROLE_CLAIM_TYPE must not be empty")
	}
	return nil
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

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
