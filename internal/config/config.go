package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

type Config struct {
	Addr          string
	DatabaseURL   string
	LogFile       string
	LogLevel      slog.Level
	MigrationsDir string

	UploadDir          string
	ImportMaxFileBytes int64
	ImportMaxRows      int
	ImportWorkers      int
	ImportPollInterval time.Duration
	ImportJobLease     time.Duration
	ImportProgressStep int
	ReferenceCacheTTL  time.Duration

	ShutdownTimeout time.Duration
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:               getEnv("API_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		LogFile:            os.Getenv("LOG_FILE"),
		LogLevel:           getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "migrations"),
		UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
		ImportMaxFileBytes: int64(getEnvInt("IMPORT_MAX_FILE_MB", 10)) * 1024 * 1024,
		ImportMaxRows:      getEnvInt("IMPORT_MAX_ROWS", 50000),
		ImportWorkers:      clamp(getEnvInt("IMPORT_WORKERS", 4), 1, 16),
		ImportPollInterval: time.Duration(getEnvInt("IMPORT_POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		ImportJobLease:     time.Duration(getEnvInt("IMPORT_JOB_LEASE_SECONDS", 120)) * time.Second,
		ImportProgressStep: getEnvInt("IMPORT_PROGRESS_EVERY", 10),
		ReferenceCacheTTL:  time.Duration(getEnvInt("REFERENCE_CACHE_TTL_SECONDS", 300)) * time.Second,
		ShutdownTimeout:    time.Duration(getEnvInt("API_SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
	}

	if cfg.DatabaseURL == "" {
		return Config{}, ErrMissingDatabaseURL
	}
	if cfg.ImportMaxFileBytes <= 0 {
		return Config{}, fmt.Errorf("IMPORT_MAX_FILE_MB must be positive")
	}

	return cfg, nil
}

// BodyLimit renders the upload limit in the form echo's BodyLimit expects.
func (c Config) BodyLimit() string {
	return strconv.FormatInt(c.ImportMaxFileBytes/1024, 10) + "K"
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return fallback
	}
	return level
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
