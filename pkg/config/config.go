package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional, result archive only)
	Database DatabaseConfig

	// Upstream data source
	Upstream UpstreamConfig

	// Series cache
	Cache CacheConfig

	// Batch orchestration
	Batch BatchConfig

	// Scheduler
	ScanSchedule string // cron spec for the nightly scan

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration for the report archive
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// UpstreamConfig holds the market data source configuration
type UpstreamConfig struct {
	BaseURL    string
	ListingURL string
	StartDate  string // earliest bar date requested, YYYYMMDD

	AttemptTimeout time.Duration // per network attempt
	RateLimit      float64       // requests per second
	RateBurst      int
}

// CacheConfig holds the series cache configuration
type CacheConfig struct {
	Dir       string
	Freshness time.Duration // entries older than this must be refetched
}

// BatchConfig holds batch coordination configuration
type BatchConfig struct {
	MaxRetries      int
	RetryDelay      time.Duration // base backoff delay
	MaxWorkers      int           // 0 = min(32, 4 x NumCPU)
	CheckpointEvery int
	CheckpointDir   string
	RunTimeout      time.Duration // 0 = no global timeout
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Upstream: UpstreamConfig{
			BaseURL:        getEnv("UPSTREAM_BASE_URL", "https://push2his.eastmoney.com"),
			ListingURL:     getEnv("UPSTREAM_LISTING_URL", "https://quote.eastmoney.com/stock_list.html"),
			StartDate:      getEnv("UPSTREAM_START_DATE", "20240101"),
			AttemptTimeout: getEnvAsDuration("UPSTREAM_ATTEMPT_TIMEOUT", "15s"),
			RateLimit:      getEnvAsFloat("UPSTREAM_RATE_LIMIT", 8),
			RateBurst:      getEnvAsInt("UPSTREAM_RATE_BURST", 4),
		},

		Cache: CacheConfig{
			Dir:       getEnv("CACHE_DIR", "cache/stock_data"),
			Freshness: getEnvAsDuration("CACHE_FRESHNESS", "24h"),
		},

		Batch: BatchConfig{
			MaxRetries:      getEnvAsInt("SCAN_MAX_RETRIES", 3),
			RetryDelay:      getEnvAsDuration("SCAN_RETRY_DELAY", "2s"),
			MaxWorkers:      getEnvAsInt("SCAN_MAX_WORKERS", 0),
			CheckpointEvery: getEnvAsInt("SCAN_CHECKPOINT_EVERY", 10),
			CheckpointDir:   getEnv("SCAN_CHECKPOINT_DIR", "cache/checkpoints"),
			RunTimeout:      getEnvAsDuration("SCAN_RUN_TIMEOUT", "0s"),
		},

		ScanSchedule: getEnv("SCAN_SCHEDULE", "0 0 18 * * MON-FRI"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are coherent
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Batch.MaxRetries < 1 {
		return fmt.Errorf("SCAN_MAX_RETRIES must be >= 1")
	}

	if c.Batch.CheckpointEvery < 1 {
		return fmt.Errorf("SCAN_CHECKPOINT_EVERY must be >= 1")
	}

	if c.Cache.Freshness <= 0 {
		return fmt.Errorf("CACHE_FRESHNESS must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
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
