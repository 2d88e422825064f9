package config

import (
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the API and the parse worker.
type Config struct {
	Port string

	AuthToken string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
	RedisDLQ      string
	RedisGroup    string
	RedisConsumer string

	TaskRetentionHours int

	ExtractorAPIKey    string
	ExtractorBaseURL   string
	ExtractorModel     string
	ExtractorTimeoutMS int

	WebhookMaxAttempts      int
	WebhookFailureThreshold int
	WebhookTimeoutMS        int
	WebhookBackoffBaseMS    int
	WebhookBackoffMaxMS     int

	EventBusBuffer  int
	DashboardBuffer int

	StorageBaseURL string

	RateLimitRPS   float64
	RateLimitBurst int

	CORSOrigins []string

	WorkerEnabled bool
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AuthToken: getEnv("API_AUTH_TOKEN", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisStream:   getEnv("REDIS_STREAM", "ats_parse_jobs"),
		RedisDLQ:      getEnv("REDIS_DLQ_STREAM", "ats_parse_jobs_dlq"),
		RedisGroup:    getEnv("REDIS_GROUP", "ats_parse_workers"),
		RedisConsumer: getEnv("REDIS_CONSUMER", "worker-1"),

		TaskRetentionHours: getEnvInt("TASK_RETENTION_HOURS", 24),

		ExtractorAPIKey:    getEnv("EXTRACTOR_API_KEY", ""),
		ExtractorBaseURL:   getEnv("EXTRACTOR_BASE_URL", "https://open.bigmodel.cn/api/paas/v4"),
		ExtractorModel:     getEnv("EXTRACTOR_MODEL", "glm-4-flash"),
		ExtractorTimeoutMS: getEnvInt("EXTRACTOR_TIMEOUT_MS", 30000),

		WebhookMaxAttempts:      getEnvInt("WEBHOOK_MAX_ATTEMPTS", 5),
		WebhookFailureThreshold: getEnvInt("WEBHOOK_FAILURE_THRESHOLD", 5),
		WebhookTimeoutMS:        getEnvInt("WEBHOOK_TIMEOUT_MS", 10000),
		WebhookBackoffBaseMS:    getEnvInt("WEBHOOK_BACKOFF_BASE_MS", 1000),
		WebhookBackoffMaxMS:     getEnvInt("WEBHOOK_BACKOFF_MAX_MS", 60000),

		EventBusBuffer:  getEnvInt("EVENT_BUS_BUFFER", 256),
		DashboardBuffer: getEnvInt("DASHBOARD_BUFFER", 32),

		StorageBaseURL: getEnv("STORAGE_BASE_URL", ""),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),

		WorkerEnabled: getEnvBool("WORKER_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
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

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}

func getEnvBool(key string, fallback bool) bool {
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
