package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs to run. It is built once in main
// and handed to the components that need it; nothing reads the environment
// after Load returns.
type Config struct {
	HTTPPort    string
	DatabaseURL string
	JWTSecret   string
	SessionTTL  time.Duration
	BackendURL  string
	LogLevel    string
	LogFormat   string
	StreamDelay time.Duration
}

func Load() (Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "chatrelay.db"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		SessionTTL:  time.Duration(getEnvAsInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		BackendURL:  getEnv("BACKEND_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "console"),
		StreamDelay: time.Duration(getEnvAsInt("STREAM_DELAY_MS", 50)) * time.Millisecond,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if cfg.BackendURL == "" {
		return Config{}, fmt.Errorf("BACKEND_URL environment variable is required")
	}

	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
