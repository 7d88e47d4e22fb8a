package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL     string
	DataDir      string
	CastFile     string
	GameStateTTL time.Duration

	MaxCascadeDepth int
	AutoCloseDelay  time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:    getEnv("REDIS_URL", "localhost:6379"),
		DataDir:     getEnv("DATA_DIR", "./data"),
		CastFile:    getEnv("CAST_FILE", "cast.toml"),
	}

	var err error
	if cfg.MaxCascadeDepth, err = strconv.Atoi(getEnv("MAX_CASCADE_DEPTH", "64")); err != nil || cfg.MaxCascadeDepth < 1 {
		return nil, fmt.Errorf("MAX_CASCADE_DEPTH must be a positive integer")
	}
	if cfg.AutoCloseDelay, err = time.ParseDuration(getEnv("AUTO_CLOSE_DELAY", "5s")); err != nil || cfg.AutoCloseDelay < 0 {
		return nil, fmt.Errorf("AUTO_CLOSE_DELAY must be a non-negative duration: %q", os.Getenv("AUTO_CLOSE_DELAY"))
	}
	if cfg.GameStateTTL, err = time.ParseDuration(getEnv("GAMESTATE_TTL", "1h")); err != nil || cfg.GameStateTTL <= 0 {
		return nil, fmt.Errorf("GAMESTATE_TTL must be a positive duration: %q", os.Getenv("GAMESTATE_TTL"))
	}

	return cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
