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

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data
	Data DataConfig

	// Default allocation parameters (YAML strategy file overrides these)
	Trading TradingConfig

	// Live feed
	Feed FeedConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// DatabaseConfig holds PostgreSQL configuration.
// URL may be empty: run persistence is then disabled and results are kept
// in memory only.
type DatabaseConfig struct {
	URL string

	// Connection Pool
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

// DataConfig holds price history source configuration
type DataConfig struct {
	Dir       string // local directory for downloaded CSV files
	BaseURL   string // yearly gemini CSV files live here
	IndexURL  string // HTML index listing available files
	Symbol    string
	FirstYear int
	LastYear  int
}

// TradingConfig holds default one-way trading parameters
type TradingConfig struct {
	LowerBound float64 // L
	UpperBound float64 // U
	Lambda     float64 // robustness weight, 1.0 = pure worst-case
	Resample   time.Duration
}

// FeedConfig holds live market data feed configuration
type FeedConfig struct {
	WSURL        string
	StepInterval time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// Market data
		Data: DataConfig{
			Dir:       getEnv("DATA_DIR", "data"),
			BaseURL:   getEnv("DATA_BASE_URL", "https://raw.githubusercontent.com/jrrhuang/data/main/BTCUSD"),
			IndexURL:  getEnv("DATA_INDEX_URL", "https://github.com/jrrhuang/data/tree/main/BTCUSD"),
			Symbol:    getEnv("DATA_SYMBOL", "BTCUSD"),
			FirstYear: getEnvAsInt("DATA_FIRST_YEAR", 2015),
			LastYear:  getEnvAsInt("DATA_LAST_YEAR", 2022),
		},

		// Trading defaults
		Trading: TradingConfig{
			LowerBound: getEnvAsFloat("TRADING_LOWER_BOUND", 5000),
			UpperBound: getEnvAsFloat("TRADING_UPPER_BOUND", 70000),
			Lambda:     getEnvAsFloat("TRADING_LAMBDA", 1.0),
			Resample:   getEnvAsDuration("TRADING_RESAMPLE", "5m"),
		},

		// Live feed
		Feed: FeedConfig{
			WSURL:        getEnv("FEED_WS_URL", "wss://api.gemini.com/v1/marketdata"),
			StepInterval: getEnvAsDuration("FEED_STEP_INTERVAL", "5m"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9091"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	// Price bounds must describe a non-degenerate positive range
	if c.Trading.LowerBound <= 0 {
		return fmt.Errorf("TRADING_LOWER_BOUND must be positive")
	}
	if c.Trading.UpperBound <= c.Trading.LowerBound {
		return fmt.Errorf("TRADING_UPPER_BOUND must exceed TRADING_LOWER_BOUND")
	}
	if c.Trading.Lambda <= 0 || c.Trading.Lambda > 1 {
		return fmt.Errorf("TRADING_LAMBDA must be in (0, 1]")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
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
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
