// Package config reads process configuration from the environment.
// A .env file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds settings shared by the server, the worker and posctl.
type Config struct {
	AppEnv   string
	Port     string
	LogLevel string

	DatabaseURL        string
	DBMaxConns         int
	TxStatementTimeout time.Duration

	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	PromoCacheTTL      time.Duration
	IdempotencyLockTTL time.Duration

	AuditBuffer int

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxChannel      string
	OutboxRetention    time.Duration

	CORSOrigins []string

	// SeedDemoData fills an in-memory store with demo records at startup.
	SeedDemoData bool
}

// Load reads .env (if any) and the environment.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          getEnv("APP_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTIssuer:     getEnv("JWT_ISSUER", "posledger"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		OutboxChannel: getEnv("OUTBOX_CHANNEL", "posledger.events"),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "")),
		SeedDemoData:  getEnv("SEED_DEMO_DATA", "") == "true",
	}

	var err error
	if cfg.DBMaxConns, err = getEnvInt("DB_MAX_CONNS", 20); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.AuditBuffer, err = getEnvInt("AUDIT_BUFFER", 1024); err != nil {
		return nil, err
	}
	if cfg.OutboxBatchSize, err = getEnvInt("OUTBOX_BATCH_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.TxStatementTimeout, err = getEnvDuration("TX_STATEMENT_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.JWTTTL, err = getEnvDuration("JWT_TTL", 12*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PromoCacheTTL, err = getEnvDuration("PROMO_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.IdempotencyLockTTL, err = getEnvDuration("IDEMPOTENCY_LOCK_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.OutboxPollInterval, err = getEnvDuration("OUTBOX_POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.OutboxRetention, err = getEnvDuration("OUTBOX_RETENTION", 7*24*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// UsesMemoryStore reports whether no database is configured.
func (c *Config) UsesMemoryStore() bool {
	return c.DatabaseURL == ""
}

// Validate checks the settings the HTTP server cannot run without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if !c.IsDevelopment() && c.UsesMemoryStore() {
		return fmt.Errorf("DATABASE_URL is required when APP_ENV=%s", c.AppEnv)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// MustEnv returns the variable or an error naming it.
func MustEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s environment variable is required", key)
	}
	return value, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
