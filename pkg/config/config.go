package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	Environment        string
	ServerPort         int
	LogLevel           string
	CORSAllowedOrigins []string

	Database Database

	RedisURL        string
	CatalogCacheTTL time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	// StrictApproval re-runs the availability check when a request is
	// approved. Off by default: only Approved rows block submissions, and
	// with the flag off a librarian can still approve two overlapping
	// Pending requests, matching the historical behavior.
	StrictApproval bool

	LoansGaugeInterval time.Duration
	RateLimitPerMinute int
}

// Database holds PostgreSQL connection settings
type Database struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	cacheTTL, err := strconv.Atoi(getEnv("CATALOG_CACHE_TTL_SECONDS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid CATALOG_CACHE_TTL_SECONDS: %w", err)
	}

	tokenTTL, err := strconv.Atoi(getEnv("TOKEN_TTL_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL_MINUTES: %w", err)
	}

	gaugeInterval, err := strconv.Atoi(getEnv("LOANS_GAUGE_INTERVAL_MINUTES", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOANS_GAUGE_INTERVAL_MINUTES: %w", err)
	}

	rateLimit, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
	}

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  port,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),
		Database: Database{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            dbPort,
			User:            getEnv("DB_USER", "lendingdesk"),
			Password:        getEnv("DB_PASSWORD", "dev"),
			Name:            getEnv("DB_NAME", "lendingdesk"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		CatalogCacheTTL:    time.Duration(cacheTTL) * time.Second,
		JWTSecret:          getEnv("JWT_SECRET", ""),
		TokenTTL:           time.Duration(tokenTTL) * time.Minute,
		StrictApproval:     parseBoolEnv("STRICT_APPROVAL"),
		LoansGaugeInterval: time.Duration(gaugeInterval) * time.Minute,
		RateLimitPerMinute: rateLimit,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
