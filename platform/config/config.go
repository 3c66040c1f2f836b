// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetMigrationsDir() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

// RedisConfig provides settings for the search result cache.
type RedisConfig interface {
	GetRedisURL() string
	IsRedisEnabled() bool
}

// SearchConfig provides settings for the search module.
type SearchConfig interface {
	GetSearchStore() string
	GetSearchSeedFile() string
	GetSearchFiltersFile() string
	GetSearchDefaultLimit() int
	GetSearchMaxLimit() int
	GetSearchCacheTTL() time.Duration
	GetSearchSessionTTL() time.Duration
}

// BreakerConfig provides circuit breaker settings for record store calls.
type BreakerConfig interface {
	IsBreakerEnabled() bool
	GetBreakerMaxRequests() uint32
	GetBreakerInterval() time.Duration
	GetBreakerTimeout() time.Duration
	GetBreakerTripRatio() float64
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                string
	HTTPAddr           string
	DatabaseURL        string
	MigrationsDir      string
	JWTAccessSecret    string
	CORSAllowAll       bool
	CORSOrigins        []string
	CORSAllowCreds     bool
	RateLimitRPS       float64
	RateLimitBurst     int
	RedisURL           string
	SearchStore        string
	SearchSeedFile     string
	SearchFiltersFile  string
	SearchDefaultLimit int
	SearchMaxLimit     int
	SearchCacheTTL     time.Duration
	SearchSessionTTL   time.Duration
	BreakerEnabled     bool
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
	BreakerTripRatio   float64
}

const (
	// StorePostgres reads records from the Postgres database.
	StorePostgres = "postgres"
	// StoreMemory reads records from an in-process store seeded from a file.
	StoreMemory = "memory"
)

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string   { return c.DatabaseURL }
func (c *Config) GetMigrationsDir() string { return c.MigrationsDir }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }
func (c *Config) GetRateLimitRPS() float64 { return c.RateLimitRPS }
func (c *Config) GetRateLimitBurst() int   { return c.RateLimitBurst }

// RedisConfig implementation
func (c *Config) GetRedisURL() string  { return c.RedisURL }
func (c *Config) IsRedisEnabled() bool { return c.RedisURL != "" && c.SearchCacheTTL > 0 }

// SearchConfig implementation
func (c *Config) GetSearchStore() string             { return c.SearchStore }
func (c *Config) GetSearchSeedFile() string          { return c.SearchSeedFile }
func (c *Config) GetSearchFiltersFile() string       { return c.SearchFiltersFile }
func (c *Config) GetSearchDefaultLimit() int         { return c.SearchDefaultLimit }
func (c *Config) GetSearchMaxLimit() int             { return c.SearchMaxLimit }
func (c *Config) GetSearchCacheTTL() time.Duration   { return c.SearchCacheTTL }
func (c *Config) GetSearchSessionTTL() time.Duration { return c.SearchSessionTTL }

// BreakerConfig implementation
func (c *Config) IsBreakerEnabled() bool            { return c.BreakerEnabled }
func (c *Config) GetBreakerMaxRequests() uint32     { return c.BreakerMaxRequests }
func (c *Config) GetBreakerInterval() time.Duration { return c.BreakerInterval }
func (c *Config) GetBreakerTimeout() time.Duration  { return c.BreakerTimeout }
func (c *Config) GetBreakerTripRatio() float64      { return c.BreakerTripRatio }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "migrations"),
		JWTAccessSecret:    getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:       corsAllowAll,
		CORSOrigins:        corsOrigins,
		CORSAllowCreds:     strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RateLimitRPS:       mustFloat(getEnv("RATE_LIMIT_RPS", "10")),
		RateLimitBurst:     mustInt(getEnv("RATE_LIMIT_BURST", "20")),
		RedisURL:           getEnv("REDIS_URL", ""),
		SearchStore:        strings.ToLower(getEnv("SEARCH_STORE", StorePostgres)),
		SearchSeedFile:     getEnv("SEARCH_SEED_FILE", ""),
		SearchFiltersFile:  getEnv("SEARCH_FILTERS_FILE", ""),
		SearchDefaultLimit: mustInt(getEnv("SEARCH_DEFAULT_LIMIT", "20")),
		SearchMaxLimit:     mustInt(getEnv("SEARCH_MAX_LIMIT", "100")),
		SearchCacheTTL:     mustDuration(getEnv("SEARCH_CACHE_TTL", "30s")),
		SearchSessionTTL:   mustDuration(getEnv("SEARCH_SESSION_TTL", "30m")),
		BreakerEnabled:     strings.EqualFold(getEnv("SEARCH_BREAKER_ENABLED", "true"), "true"),
		BreakerMaxRequests: uint32(mustInt(getEnv("SEARCH_BREAKER_MAX_REQUESTS", "1"))),
		BreakerInterval:    mustDuration(getEnv("SEARCH_BREAKER_INTERVAL", "60s")),
		BreakerTimeout:     mustDuration(getEnv("SEARCH_BREAKER_TIMEOUT", "30s")),
		BreakerTripRatio:   mustFloat(getEnv("SEARCH_BREAKER_TRIP_RATIO", "0.6")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.SearchStore {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when SEARCH_STORE is postgres")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("SEARCH_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.SearchStore)
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if c.SearchDefaultLimit <= 0 {
		return fmt.Errorf("SEARCH_DEFAULT_LIMIT must be positive")
	}
	if c.SearchMaxLimit < c.SearchDefaultLimit {
		return fmt.Errorf("SEARCH_MAX_LIMIT must be at least SEARCH_DEFAULT_LIMIT")
	}
	if c.BreakerTripRatio <= 0 || c.BreakerTripRatio > 1 {
		return fmt.Errorf("SEARCH_BREAKER_TRIP_RATIO must be in (0, 1]")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
