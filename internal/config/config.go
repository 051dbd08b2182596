package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config aggregates every setting the service reads from the environment.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	storage, err := loadStorageConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Storage: storage}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr          string
	AllowedOrigin string
	LogLevel      slog.Level
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	addr := port
	if !strings.Contains(port, ":") {
		if strings.Contains(port, " ") {
			return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
		}
		addr = ":" + port
	}

	level, err := parseLogLevel(getEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		return ServerConfig{}, err
	}

	return ServerConfig{
		Addr:          addr,
		AllowedOrigin: getEnvOrDefault("ALLOWED_ORIGIN", "http://localhost:5173"),
		LogLevel:      level,
	}, nil
}

// StorageConfig describes the message store.
type StorageConfig struct {
	DataDir       string
	LimitMessages *int
}

func loadStorageConfig() (StorageConfig, error) {
	limit, err := parseOptionalIntEnv("LIMIT_MESSAGES")
	if err != nil {
		return StorageConfig{}, err
	}
	if limit != nil && *limit < 1 {
		return StorageConfig{}, fmt.Errorf("LIMIT_MESSAGES must be positive, got %d", *limit)
	}

	return StorageConfig{
		DataDir:       getEnvOrDefault("DATA_DIR", "./data"),
		LimitMessages: limit,
	}, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL value: %q", raw)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
