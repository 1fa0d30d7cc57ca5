// Package config loads server configuration from flags, environment variables and a
// .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mmynk/giftwiser/internal/resilience"
)

// Config holds the application configuration.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Resilience resilience.Config
	RateLimit  RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig selects and locates the backing store.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string

	// Path is the SQLite database file.
	Path string

	// DSN is the PostgreSQL connection string.
	DSN string
}

// AuthConfig holds caller-identity configuration.
type AuthConfig struct {
	// JWTSecret verifies bearer tokens issued by the surrounding application.
	JWTSecret string
}

// RateLimitConfig bounds requests per caller.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Load reads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("giftwiser", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	dbDriver := fs.String("db-driver", "", "Database driver: sqlite or postgres (default: sqlite)")
	dbPath := fs.String("db-path", "", "SQLite database path (default: ./data/giftwiser.db)")
	dbDSN := fs.String("db-dsn", "", "PostgreSQL connection string")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Variables already set in the environment win over the file.
	_ = godotenv.Load(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port: getConfigValue(*port, "SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Driver: getConfigValue(*dbDriver, "DB_DRIVER", "sqlite"),
			Path:   getConfigValue(*dbPath, "DB_PATH", "./data/giftwiser.db"),
			DSN:    getConfigValue(*dbDSN, "DATABASE_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getConfigValue("", "JWT_SECRET", ""),
		},
	}

	var err error
	if cfg.Server.ReadTimeout, err = getDurationConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = getDurationConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = getDurationConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}

	if cfg.Resilience, err = loadResilience(); err != nil {
		return nil, err
	}

	cfg.RateLimit = RateLimitConfig{
		RPS:   getFloatConfigValue("RATE_LIMIT_RPS", 20),
		Burst: getIntConfigValue("", "RATE_LIMIT_BURST", 40),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func loadResilience() (resilience.Config, error) {
	def := resilience.DefaultConfig()
	out := resilience.Config{
		MaxRetries:       getIntConfigValue("", "STORE_MAX_RETRIES", def.MaxRetries),
		FailureThreshold: uint32(getIntConfigValue("", "STORE_BREAKER_THRESHOLD", int(def.FailureThreshold))),
	}

	var err error
	if out.InitialDelay, err = getDurationConfigValue("", "STORE_RETRY_INITIAL_DELAY", def.InitialDelay); err != nil {
		return out, err
	}
	if out.MaxDelay, err = getDurationConfigValue("", "STORE_RETRY_MAX_DELAY", def.MaxDelay); err != nil {
		return out, err
	}
	if out.AttemptTimeout, err = getDurationConfigValue("", "STORE_ATTEMPT_TIMEOUT", def.AttemptTimeout); err != nil {
		return out, err
	}
	if out.Cooldown, err = getDurationConfigValue("", "STORE_BREAKER_COOLDOWN", def.Cooldown); err != nil {
		return out, err
	}
	return out, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("DB_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database driver: %s (must be sqlite or postgres)", c.Database.Driver)
	}

	if c.App.Environment == "production" && c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}

	if c.Resilience.MaxRetries < 0 {
		return errors.New("STORE_MAX_RETRIES cannot be negative")
	}
	if c.Resilience.InitialDelay > c.Resilience.MaxDelay {
		return errors.New("STORE_RETRY_INITIAL_DELAY cannot exceed STORE_RETRY_MAX_DELAY")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit RPS and burst must be positive")
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return v
}

func getFloatConfigValue(envKey string, defaultValue float64) float64 {
	strValue := getConfigValue("", envKey, "")
	if strValue == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getDurationConfigValue(flagValue, envKey string, defaultValue time.Duration) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return d, nil
}
