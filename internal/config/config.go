package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	URL      string
	MaxConns int32
}

// RedisConfig holds cache and lock settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// StockConfig holds inventory ledger tuning
type StockConfig struct {
	LockEnabled   bool
	LockTTL       time.Duration
	AdjustRetries int
}

// MinioConfig holds object storage settings for product images
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// JobsConfig holds background job settings
type JobsConfig struct {
	ReconcileInterval time.Duration
	LowStockThreshold int64
}

// Config holds all configuration
type Config struct {
	Env      string
	Port     string
	LogLevel string
	Database DatabaseConfig
	Redis    RedisConfig
	Stock    StockConfig
	Minio    MinioConfig
	Jobs     JobsConfig
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	return &Config{
		Env:      getEnv("APP_ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: getEnvAsDuration("CACHE_TTL", 15*time.Minute),
		},
		Stock: StockConfig{
			LockEnabled:   getEnvAsBool("STOCK_LOCK_ENABLED", false),
			LockTTL:       getEnvAsDuration("STOCK_LOCK_TTL", 5*time.Second),
			AdjustRetries: getEnvAsInt("STOCK_ADJUST_RETRIES", 3),
		},
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("MINIO_BUCKET", "product-images"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		Jobs: JobsConfig{
			ReconcileInterval: getEnvAsDuration("RECONCILE_INTERVAL", time.Hour),
			LowStockThreshold: int64(getEnvAsInt("LOW_STOCK_THRESHOLD", 5)),
		},
	}
}

// Validate reports configuration that would prevent the service from starting.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if c.Stock.AdjustRetries < 1 {
		return errors.New("STOCK_ADJUST_RETRIES must be at least 1")
	}
	return nil
}

// LogFields returns the non-secret configuration as zap fields
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("environment", c.Env),
		zap.String("port", c.Port),
		zap.Bool("redis_enabled", c.Redis.Addr != ""),
		zap.Bool("stock_lock_enabled", c.Stock.LockEnabled),
		zap.Bool("minio_enabled", c.Minio.Endpoint != ""),
		zap.Duration("reconcile_interval", c.Jobs.ReconcileInterval),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
