// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir      string // Base directory for the sqlite store (always absolute)
	DatabaseFile string // Store filename inside DataDir
	RedisURL     string
	Port         int
	LogLevel     string
	DevMode      bool

	Scrape    ScrapeConfig
	Scheduler SchedulerConfig

	// BackgroundQueueSize bounds the fire-and-forget persistence queue.
	BackgroundQueueSize int
	// BackgroundTaskTimeout bounds each background write.
	BackgroundTaskTimeout time.Duration
}

// ScrapeConfig holds the defaults for outbound marketplace fetches.
// Individual scrapers may tighten these for more defensive sources.
type ScrapeConfig struct {
	Timeout    time.Duration // Per-attempt request timeout
	MaxRetries int           // Additional attempts after the first
	MinDelay   time.Duration // Lower bound of inter-attempt jitter
	MaxDelay   time.Duration // Upper bound of inter-attempt jitter
}

// SchedulerConfig holds background job tuning.
type SchedulerConfig struct {
	Enabled           bool
	PriceRefreshLimit int           // Max items re-scraped per hourly run
	PriceRefreshDelay time.Duration // Politeness delay between items
}

// DatabasePath returns the absolute path of the sqlite store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, c.DatabaseFile)
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("PROFITEER_DATA_DIR", "")
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
		DatabaseFile: getEnv("PROFITEER_DB_FILE", "profiteer.db"),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		Port:         getEnvAsInt("PORT", 8090),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		Scrape: ScrapeConfig{
			Timeout:    getEnvAsDuration("SCRAPE_TIMEOUT", 25*time.Second),
			MaxRetries: getEnvAsInt("SCRAPE_MAX_RETRIES", 2),
			MinDelay:   getEnvAsDuration("SCRAPE_MIN_DELAY", 1*time.Second),
			MaxDelay:   getEnvAsDuration("SCRAPE_MAX_DELAY", 3*time.Second),
		},
		Scheduler: SchedulerConfig{
			Enabled:           getEnvAsBool("SCHEDULER_ENABLED", true),
			PriceRefreshLimit: getEnvAsInt("PRICE_REFRESH_LIMIT", 50),
			PriceRefreshDelay: getEnvAsDuration("PRICE_REFRESH_DELAY", 2*time.Second),
		},
		BackgroundQueueSize:   getEnvAsInt("BACKGROUND_QUEUE_SIZE", 64),
		BackgroundTaskTimeout: getEnvAsDuration("BACKGROUND_TASK_TIMEOUT", 30*time.Second),
	}

	if cfg.Scrape.MinDelay > cfg.Scrape.MaxDelay {
		return nil, fmt.Errorf("SCRAPE_MIN_DELAY (%s) exceeds SCRAPE_MAX_DELAY (%s)",
			cfg.Scrape.MinDelay, cfg.Scrape.MaxDelay)
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a fallback
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback
func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a fallback
func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a duration or returns a fallback
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
