package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Every environment variable is read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data provider
	Provider ProviderConfig

	// Trading session grid
	Session SessionConfig

	// Ingestion
	Ingest IngestConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// ProviderConfig holds market data provider configuration
type ProviderConfig struct {
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64 // client-side throttle; the provider publishes no limit
}

// SessionConfig defines the canonical trading session grid
type SessionConfig struct {
	Timezone       string // IANA name, e.g. Europe/Moscow
	OpenHour       int
	OpenMinute     int
	SessionMinutes int // grid length N; minute indexes run 1..N
}

// IngestConfig holds ingestion run configuration
type IngestConfig struct {
	Symbols       []string // pilot symbol set, caller may override per run
	Workers       int
	CAThreshold   float64 // max |close-adjclose|/close before a session is excluded
	DatasetLocked bool    // refuse all writes when set

	// Official open/close policy: first_minute|daily_bar and last_minute|daily_bar
	OfficialOpenPolicy  string
	OfficialClosePolicy string
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8085"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Provider: ProviderConfig{
			BaseURL:        getEnv("PROVIDER_BASE_URL", "https://query1.finance.yahoo.com"),
			Timeout:        getEnvAsDuration("PROVIDER_TIMEOUT", "30s"),
			RequestsPerSec: getEnvAsFloat("PROVIDER_RPS", 2.0),
		},

		Session: SessionConfig{
			Timezone:       getEnv("SESSION_TZ", "Europe/Moscow"),
			OpenHour:       getEnvAsInt("SESSION_OPEN_HOUR", 10),
			OpenMinute:     getEnvAsInt("SESSION_OPEN_MINUTE", 0),
			SessionMinutes: getEnvAsInt("SESSION_MINUTES", 480),
		},

		Ingest: IngestConfig{
			Symbols:             getEnvAsList("INGEST_SYMBOLS", "SBER.ME,GAZP.ME,LKOH.ME,ROSN.ME,GMKN.ME"),
			Workers:             getEnvAsInt("INGEST_WORKERS", 4),
			CAThreshold:         getEnvAsFloat("CA_THRESHOLD", 0.02),
			DatasetLocked:       getEnvAsBool("DATASET_LOCKED", false),
			OfficialOpenPolicy:  getEnv("OFFICIAL_OPEN_POLICY", "first_minute"),
			OfficialClosePolicy: getEnv("OFFICIAL_CLOSE_POLICY", "daily_bar"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Session.SessionMinutes <= 0 {
		return fmt.Errorf("SESSION_MINUTES must be positive")
	}

	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		return fmt.Errorf("SESSION_TZ %q is not a valid IANA timezone: %w", c.Session.Timezone, err)
	}

	if c.Ingest.CAThreshold <= 0 {
		return fmt.Errorf("CA_THRESHOLD must be positive")
	}

	switch c.Ingest.OfficialOpenPolicy {
	case "first_minute", "daily_bar":
	default:
		return fmt.Errorf("OFFICIAL_OPEN_POLICY must be first_minute or daily_bar")
	}

	switch c.Ingest.OfficialClosePolicy {
	case "last_minute", "daily_bar":
	default:
		return fmt.Errorf("OFFICIAL_CLOSE_POLICY must be last_minute or daily_bar")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsList(key string, defaultValue string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
