// Package config loads application configuration from environment variables.
// All variables use the LEARN_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Cache          CacheConfig
	Auth           AuthConfig
	Session        SessionConfig
	Log            LogConfig
	CurriculumPath string
	SeedTemplate   bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL connection settings.
// An empty URL selects the in-memory stores.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings.
// An empty URL keeps pending completions in process memory.
type CacheConfig struct {
	URL string
}

// AuthConfig holds identity provider settings.
type AuthConfig struct {
	JWTSecret         string
	TokenTTL          int // minutes
	GoogleClientID    string
	MinPasswordLength int
}

// SessionConfig holds browser session settings.
type SessionConfig struct {
	IdleTTL    time.Duration
	PendingTTL time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with LEARN_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("LEARN_SERVER_PORT", 8080),
			Host: envStr("LEARN_SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      envStr("LEARN_DATABASE_URL", ""),
			MaxConns: envInt("LEARN_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("LEARN_DATABASE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			URL: envStr("LEARN_CACHE_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:         envStr("LEARN_AUTH_JWT_SECRET", "change-me-in-production"),
			TokenTTL:          envInt("LEARN_AUTH_TOKEN_TTL", 60),
			GoogleClientID:    envStr("LEARN_AUTH_GOOGLE_CLIENT_ID", ""),
			MinPasswordLength: envInt("LEARN_AUTH_MIN_PASSWORD_LENGTH", 6),
		},
		Session: SessionConfig{
			IdleTTL:    envDuration("LEARN_SESSION_IDLE_TTL", 2*time.Hour),
			PendingTTL: envDuration("LEARN_SESSION_PENDING_TTL", 24*time.Hour),
		},
		Log: LogConfig{
			Level:  envStr("LEARN_LOG_LEVEL", "info"),
			Format: envStr("LEARN_LOG_FORMAT", "json"),
		},
		CurriculumPath: envStr("LEARN_CURRICULUM_PATH", "./content"),
		SeedTemplate:   envBool("LEARN_SEED_TEMPLATE", false),
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("LEARN_AUTH_JWT_SECRET is required")
	}

	if c.Auth.MinPasswordLength < 1 {
		return fmt.Errorf("LEARN_AUTH_MIN_PASSWORD_LENGTH must be positive, got %d", c.Auth.MinPasswordLength)
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("LEARN_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("LEARN_SESSION_IDLE_TTL must be positive")
	}

	return nil
}

// UsesDatabase returns true if a PostgreSQL URL is configured.
func (c *Config) UsesDatabase() bool {
	return c.Database.URL != ""
}

// UsesCache returns true if a Redis URL is configured.
func (c *Config) UsesCache() bool {
	return c.Cache.URL != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
