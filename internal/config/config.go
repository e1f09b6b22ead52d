// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultFeedURL is the public stash tab endpoint of the upstream trade API.
const DefaultFeedURL = "http://www.pathofexile.com/api/public-stash-tabs"

// Config holds application configuration
type Config struct {
	DataDir      string  // Base directory for the database and cursor state (always absolute)
	DatabasePath string  // SQLite database path (defaults to <DataDir>/poefixer.db)
	FeedURL      string  // Upstream stash feed endpoint
	FeedRate     float64 // Minimum seconds between feed requests
	Port         int     // HTTP API port for serve mode
	LogLevel     string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is honored when present; explicit
// environment variables take precedence, and CLI flags override both.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("POEFIXER_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:      absDataDir,
		DatabasePath: getEnv("POEFIXER_DB", filepath.Join(absDataDir, "poefixer.db")),
		FeedURL:      getEnv("POEFIXER_FEED_URL", DefaultFeedURL),
		FeedRate:     getEnvAsFloat("POEFIXER_FEED_RATE", 1.1),
		Port:         getEnvAsInt("POEFIXER_PORT", 8084),
		LogLevel:     getEnv("LOG_LEVEL", "warn"),
	}

	return cfg, nil
}

// CursorPath returns the location of the persisted feed cursor state.
func (c *Config) CursorPath() string {
	return filepath.Join(c.DataDir, "feed_cursor.state")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
