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
// All environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data provider (ingestion)
	Provider ProviderConfig

	// Screening defaults
	Screener ScreenerConfig

	// Report output
	Report ReportConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// ProviderConfig holds market-data provider configuration.
type ProviderConfig struct {
	BaseURL        string
	RequestsPerSec float64
	Timeout        time.Duration
	MaxRetries     int
	Workers        int // bounded fetch worker pool width
}

// ScreenerConfig holds default screening parameters. Each strategy command
// can override these per run; the values here mirror the daily batch setup.
type ScreenerConfig struct {
	RPSPeriodDays   int
	RPSThreshold    float64
	RPSUsePreClose  bool
	MAPeriods       []int
	DaysToCheck     int
	LookbackDays    int
	VolSurgeRatio   float64
	MaxVolRatio     float64
	MaxDailyVolIncr float64
	MaxMA5MA10Diff  float64
	MaxPriceMA5Diff float64
	MinCandidates   int
	ExcludeSuffixes []string // instrument code suffixes dropped from every run
}

// ReportConfig holds report sink configuration.
type ReportConfig struct {
	OutputDir string
}

// Load reads configuration from environment variables.
// This is the only function that calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8086"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "screener"),
			User:            getEnv("DB_USER", "screener"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
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
			BaseURL:        getEnv("PROVIDER_BASE_URL", "https://quote.eastmoney.com"),
			RequestsPerSec: getEnvAsFloat("PROVIDER_RPS", 5.0),
			Timeout:        getEnvAsDuration("PROVIDER_TIMEOUT", "10s"),
			MaxRetries:     getEnvAsInt("PROVIDER_MAX_RETRIES", 3),
			Workers:        getEnvAsInt("PROVIDER_WORKERS", 8),
		},

		Screener: ScreenerConfig{
			RPSPeriodDays:   getEnvAsInt("RPS_PERIOD_DAYS", 20),
			RPSThreshold:    getEnvAsFloat("RPS_THRESHOLD", 90),
			RPSUsePreClose:  getEnvAsBool("RPS_USE_PRE_CLOSE", false),
			MAPeriods:       getEnvAsIntList("MA_PERIODS", []int{5, 10, 20, 30, 60}),
			DaysToCheck:     getEnvAsInt("MA_DAYS_TO_CHECK", 3),
			LookbackDays:    getEnvAsInt("LOOKBACK_DAYS", 10),
			VolSurgeRatio:   getEnvAsFloat("VOL_SURGE_RATIO", 1.5),
			MaxVolRatio:     getEnvAsFloat("MAX_VOL_RATIO", 5.0),
			MaxDailyVolIncr: getEnvAsFloat("MAX_DAILY_VOL_INCREASE", 3.0),
			MaxMA5MA10Diff:  getEnvAsFloat("MAX_MA5_MA10_DIFF_PCT", 5.0),
			MaxPriceMA5Diff: getEnvAsFloat("MAX_PRICE_MA5_DIFF_PCT", 3.0),
			MinCandidates:   getEnvAsInt("MIN_CANDIDATES", 5),
			ExcludeSuffixes: getEnvAsList("EXCLUDE_SUFFIXES", []string{".BJ"}),
		},

		Report: ReportConfig{
			OutputDir: getEnv("REPORT_OUTPUT_DIR", "res"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Provider.Workers < 1 {
		return fmt.Errorf("PROVIDER_WORKERS must be >= 1")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
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

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvAsIntList(key string, defaultValue []int) []int {
	parts := getEnvAsList(key, nil)
	if parts == nil {
		return defaultValue
	}

	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return defaultValue
		}
		out = append(out, v)
	}
	return out
}
