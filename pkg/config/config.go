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

	// Rate source (Frankfurter)
	Frankfurter FrankfurterConfig

	// Forecasting models
	Models ModelsConfig

	// Pipeline defaults
	Forecast ForecastConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	TTL      time.Duration // series cache TTL
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// FrankfurterConfig holds the rate source API configuration
type FrankfurterConfig struct {
	SourceCode        string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond int
}

// ModelsConfig holds model registry configuration
type ModelsConfig struct {
	CatalogPath   string
	ScriptTimeout time.Duration
	RscriptExe    string
	PythonExe     string
}

// ForecastConfig holds defaults for forecast and backtest commands
type ForecastConfig struct {
	Base           string
	Quotes         []string
	Model          string
	BacktestWindow int
	Horizon        int
}

// SchedulerConfig holds cron expressions (seconds field included)
type SchedulerConfig struct {
	DailyOpsSpec       string
	WeeklyForecastSpec string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
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
			TTL:      getEnvAsDuration("REDIS_SERIES_TTL", "10m"),
		},

		Frankfurter: FrankfurterConfig{
			SourceCode:        getEnv("FX_SOURCE", "frankfurter"),
			BaseURL:           strings.TrimRight(getEnv("FRANKFURTER_BASE_URL", "https://api.frankfurter.app"), "/"),
			Timeout:           getEnvAsDuration("FRANKFURTER_TIMEOUT", "30s"),
			RequestsPerSecond: getEnvAsInt("FRANKFURTER_RPS", 2),
		},

		Models: ModelsConfig{
			CatalogPath:   getEnv("MODEL_CATALOG", "config/models.yaml"),
			ScriptTimeout: getEnvAsDuration("MODEL_SCRIPT_TIMEOUT", "60s"),
			RscriptExe:    getEnv("RSCRIPT_EXE", "Rscript"),
			PythonExe:     getEnv("PYTHON_EXE", "python3"),
		},

		Forecast: ForecastConfig{
			Base:           strings.ToUpper(getEnv("FX_BASE", "USD")),
			Quotes:         getEnvAsList("FX_QUOTES", "EUR,GBP,AUD"),
			Model:          strings.ToLower(getEnv("FX_MODEL", "naive")),
			BacktestWindow: getEnvAsInt("FX_BACKTEST_WINDOW", 60),
			Horizon:        getEnvAsInt("FX_HORIZON", 1),
		},

		Scheduler: SchedulerConfig{
			DailyOpsSpec:       getEnv("SCHED_DAILY_OPS", "0 15 17 * * 1-5"),
			WeeklyForecastSpec: getEnv("SCHED_WEEKLY_FORECAST", "0 0 9 * * 6"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
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

	if c.Forecast.BacktestWindow < 1 {
		return fmt.Errorf("FX_BACKTEST_WINDOW must be >= 1")
	}
	if c.Forecast.Horizon < 1 {
		return fmt.Errorf("FX_HORIZON must be >= 1")
	}
	if len(c.Forecast.Quotes) == 0 {
		return fmt.Errorf("FX_QUOTES must list at least one currency")
	}

	return nil
}

// RedisAddr returns host:port for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}
	if explicit := os.Getenv("FX_ENV_FILE"); explicit != "" {
		paths = []string{explicit}
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

// getEnvAsList splits a comma-separated value into upper-cased, trimmed items
func getEnvAsList(key, defaultValue string) []string {
	return SplitCodes(getEnv(key, defaultValue))
}

// SplitCodes parses "eur, gbp ,AUD" into ["EUR","GBP","AUD"], dropping blanks
func SplitCodes(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
