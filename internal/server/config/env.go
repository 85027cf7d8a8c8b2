package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// parseEnv overlays values from environment variables. Unset or empty
// variables keep the current value; malformed numbers and durations are
// ignored.
func parseEnv(config *Config) {
	config.EndpointAddrHTTP = getEnvOrDefault("HTTP_ADDRESS", config.EndpointAddrHTTP)
	config.EndpointAddrGRPC = getEnvOrDefault("GRPC_ADDRESS", config.EndpointAddrGRPC)
	config.StoreBackend = getEnvOrDefault("STORE_BACKEND", config.StoreBackend)
	config.DatabaseDSN = getEnvOrDefault("DATABASE_DSN", config.DatabaseDSN)
	config.SecretKey = getEnvOrDefault("SECRET_KEY", config.SecretKey)
	config.StudioAPIKey = getEnvOrDefault("STUDIO_API_KEY", config.StudioAPIKey)
	config.SessionTokenValidityDuration = getEnvDurationOrDefault("SESSION_TOKEN_VALIDITY", config.SessionTokenValidityDuration)
	config.S3RootUser = getEnvOrDefault("S3_ROOT_USER", config.S3RootUser)
	config.S3RootPassword = getEnvOrDefault("S3_ROOT_PASSWORD", config.S3RootPassword)
	config.S3Bucket = getEnvOrDefault("S3_BUCKET", config.S3Bucket)
	config.S3Region = getEnvOrDefault("S3_REGION", config.S3Region)
	config.S3BaseEndpoint = getEnvOrDefault("S3_BASE_ENDPOINT", config.S3BaseEndpoint)
	config.RedisAddr = getEnvOrDefault("REDIS_ADDR", config.RedisAddr)
	config.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", config.RedisPassword)
	config.LockTTL = getEnvDurationOrDefault("LOCK_TTL", config.LockTTL)
	config.LockWait = getEnvDurationOrDefault("LOCK_WAIT", config.LockWait)
	config.AMQPURL = getEnvOrDefault("AMQP_URL", config.AMQPURL)
	config.NotificationQueue = getEnvOrDefault("NOTIFICATION_QUEUE", config.NotificationQueue)
	config.NotifyWorkers = getEnvIntOrDefault("NOTIFY_WORKERS", config.NotifyWorkers)
	config.NotifyQueueSize = getEnvIntOrDefault("NOTIFY_QUEUE_SIZE", config.NotifyQueueSize)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		config.AllowedOrigins = splitList(v)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// splitList splits a comma separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
