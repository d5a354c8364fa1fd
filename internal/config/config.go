package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds server configuration
type Config struct {
	Port               string
	DBPath             string
	ThresholdsFile     string
	IngestTokenHash    string
	NotifyTimeout      time.Duration
	RateLimitPerMinute int
	AllowedOrigins     []string
}

// Load returns the server configuration from environment variables
func Load() Config {
	return Config{
		Port:               getEnv("PORT", "9080"),
		DBPath:             getEnv("DB_PATH", "diskmind.db"),
		ThresholdsFile:     getEnv("THRESHOLDS_FILE", ""),
		IngestTokenHash:    getEnv("INGEST_TOKEN_HASH", ""),
		NotifyTimeout:      time.Duration(getEnvInt("NOTIFY_TIMEOUT_SECONDS", 10)) * time.Second,
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		log.Printf("⚠️  Ignoring %s=%q: want a positive integer", key, raw)
		return fallback
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
