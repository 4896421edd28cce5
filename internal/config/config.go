// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/splitrelay/internal/database"
)

// Config holds application configuration
type Config struct {
	DataDir      string // Base directory for the local databases (always absolute)
	Port         int
	LogLevel     string
	DevMode      bool
	DefaultOwner string   // Owner used when a request carries no X-Owner-ID header
	RegistryDSN  string   // Optional postgres:// DSN for a shared registry
	CORSOrigins  []string // Allowed origins for the HTTP API
	// SessionRetention is how long finished sessions stay observable.
	SessionRetention time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("COORD_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("COORD_PORT", 8001),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		DefaultOwner:     strings.TrimSpace(getEnv("COORD_DEFAULT_OWNER", "")),
		RegistryDSN:      strings.TrimSpace(getEnv("REGISTRY_DSN", "")),
		CORSOrigins:      getEnvAsList("COORD_CORS_ORIGINS", []string{"*"}),
		SessionRetention: getEnvAsDuration("COORD_SESSION_RETENTION", time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the server cannot start with
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RegistryDSN != "" && !database.IsPostgresDSN(c.RegistryDSN) {
		return fmt.Errorf("unsupported REGISTRY_DSN scheme (expected postgres:// or postgresql://)")
	}
	if c.SessionRetention <= 0 {
		return fmt.Errorf("session retention must be positive, got %s", c.SessionRetention)
	}
	return nil
}

// RegistryPath returns the registry location: the shared DSN if set, otherwise the local
// SQLite file in the data directory.
func (c *Config) RegistryPath() string {
	if c.RegistryDSN != "" {
		return c.RegistryDSN
	}
	return filepath.Join(c.DataDir, "registry.db")
}

// PortfolioPath returns the lot store file.
func (c *Config) PortfolioPath() string {
	return filepath.Join(c.DataDir, "portfolio.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
