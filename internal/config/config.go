// Package config loads runtime configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Addr     string
	DataDir  string
	Store    string // file, sqlite or redis
	RedisURL string
	LogLevel string

	// AI gateway
	AIProvider   string
	AIAPIKey     string
	AIEndpoint   string
	AIModel      string
	AIMaxTokens  int
	AITimeout    time.Duration
	AIRatePerMin int
	AICacheTTL   time.Duration
	LinkPreview  bool

	// Scheduled backups
	BackupInterval  string
	BackupDir       string
	BackupRetention int
	BackupPassword  string
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	dataDir := getEnv("STASH_DATA_DIR", "./data")

	return &Config{
		Addr:     getEnv("STASH_ADDR", "127.0.0.1:8090"),
		DataDir:  dataDir,
		Store:    strings.ToLower(getEnv("STASH_STORE", "file")),
		RedisURL: getEnv("STASH_REDIS_URL", "redis://localhost:6379/0"),
		LogLevel: getEnv("STASH_LOG_LEVEL", "info"),

		AIProvider:   strings.ToLower(getEnv("AI_PROVIDER", "gemini")),
		AIAPIKey:     getEnv("AI_API_KEY", os.Getenv("API_KEY")),
		AIEndpoint:   getEnv("AI_ENDPOINT", ""),
		AIModel:      getEnv("AI_MODEL", ""),
		AIMaxTokens:  getIntEnv("AI_MAX_TOKENS", 1024),
		AITimeout:    time.Duration(getIntEnv("AI_TIMEOUT_SECONDS", 60)) * time.Second,
		AIRatePerMin: getIntEnv("AI_RATE_PER_MINUTE", 30),
		AICacheTTL:   time.Duration(getIntEnv("AI_CACHE_TTL_MINUTES", 30)) * time.Minute,
		LinkPreview:  getBoolEnv("LINK_PREVIEW", false),

		BackupInterval:  strings.ToLower(getEnv("BACKUP_INTERVAL", "manual")),
		BackupDir:       getEnv("BACKUP_DIR", dataDir+"/backups"),
		BackupRetention: getIntEnv("BACKUP_RETENTION", 7),
		BackupPassword:  getEnv("BACKUP_PASSWORD", ""),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getBoolEnv(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
