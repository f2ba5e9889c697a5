package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"optionsTracker/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// HTTP
	ListenAddr string

	// Database / Pool
	DBPath          string
	PoolMinConns    int           // Idle connections kept ready (pool min)
	PoolMaxConns    int           // Hard ceiling on open connections (pool max)
	ConnMaxLifetime time.Duration // Recycle connections after this age
	AcquireTimeout  time.Duration // Bound on waiting for a free connection
	ShutdownTimeout time.Duration // Bound on draining the pool at shutdown

	// Auth
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// HTTP
	cfg.ListenAddr = getEnv("LISTEN_ADDR", ":9999")
	if cfg.ListenAddr == "" {
		errs = append(errs, "LISTEN_ADDR must be set")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/options_tracker.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	cfg.PoolMinConns, err = getEnvAsIntRequired("POOL_MIN_CONNS", 2)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid POOL_MIN_CONNS: %v", err))
	} else if cfg.PoolMinConns < 0 {
		errs = append(errs, "POOL_MIN_CONNS cannot be negative")
	}

	cfg.PoolMaxConns, err = getEnvAsIntRequired("POOL_MAX_CONNS", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid POOL_MAX_CONNS: %v", err))
	} else if cfg.PoolMaxConns <= 0 {
		errs = append(errs, "POOL_MAX_CONNS must be positive")
	}

	if cfg.PoolMinConns > cfg.PoolMaxConns {
		errs = append(errs, "POOL_MIN_CONNS must not exceed POOL_MAX_CONNS")
	}

	connMaxLifetimeMinutes := getEnvAsInt("CONN_MAX_LIFETIME_MINUTES", 60)
	if connMaxLifetimeMinutes <= 0 {
		errs = append(errs, "CONN_MAX_LIFETIME_MINUTES must be positive")
	}
	cfg.ConnMaxLifetime = time.Duration(connMaxLifetimeMinutes) * time.Minute

	acquireTimeoutSeconds := getEnvAsInt("ACQUIRE_TIMEOUT_SECONDS", 5)
	if acquireTimeoutSeconds <= 0 {
		errs = append(errs, "ACQUIRE_TIMEOUT_SECONDS must be positive")
	}
	cfg.AcquireTimeout = time.Duration(acquireTimeoutSeconds) * time.Second

	shutdownTimeoutSeconds := getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 10)
	if shutdownTimeoutSeconds <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT_SECONDS must be positive")
	}
	cfg.ShutdownTimeout = time.Duration(shutdownTimeoutSeconds) * time.Second

	// Auth
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	if cfg.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET must be set")
	}

	tokenTTLMinutes := getEnvAsInt("TOKEN_TTL_MINUTES", 60)
	if tokenTTLMinutes <= 0 {
		errs = append(errs, "TOKEN_TTL_MINUTES must be positive")
	}
	cfg.TokenTTL = time.Duration(tokenTTLMinutes) * time.Minute

	cfg.BcryptCost, err = getEnvAsIntRequired("BCRYPT_COST", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BCRYPT_COST: %v", err))
	} else if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		errs = append(errs, "BCRYPT_COST must be between 4 and 31")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Log warning? For non-required fields, default is often acceptable.
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}
