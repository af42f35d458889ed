package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Pathstore publishing; disabled when URL is empty.
	PathstoreURL    string
	PathstoreAPIKey string

	// Worker pool
	WorkerCount          int
	MaxQueueSize         int
	ParseConcurrency     int
	MaxConcurrentPublish int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL      time.Duration
	StatsWindow time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("NOTEGEST_API_KEY"),

		PathstoreURL:    os.Getenv("PATHSTORE_URL"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),

		WorkerCount:          envInt("WORKER_COUNT", 4),
		MaxQueueSize:         envInt("MAX_QUEUE_SIZE", 100),
		ParseConcurrency:     envInt("PARSE_CONCURRENCY", 4),
		MaxConcurrentPublish: envInt("MAX_CONCURRENT_PUBLISH", 8),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 10485760), // 10MB

		JobTTL:      envDuration("JOB_TTL", 1*time.Hour),
		StatsWindow: envDuration("STATS_WINDOW", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.ParseConcurrency <= 0 {
		cfg.ParseConcurrency = 4
	}
	if cfg.MaxConcurrentPublish <= 0 {
		cfg.MaxConcurrentPublish = 8
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10485760
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = 1 * time.Hour
	}

	return cfg
}

// PublishEnabled reports whether compiled sections are sent to pathstore.
func (c Config) PublishEnabled() bool {
	return c.PathstoreURL != ""
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("NOTEGEST_API_KEY is required")
	}
	if c.PublishEnabled() && c.PathstoreAPIKey == "" {
		return fmt.Errorf("PATHSTORE_API_KEY is required when PATHSTORE_URL is set")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
