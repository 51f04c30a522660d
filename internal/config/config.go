// Package config provides configuration for the TradieHelper realtime service.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort     int
	InternalPort int

	// Database: sqlite DSN by default, postgres:// URLs switch to pgx
	DatabaseURL string

	// Realtime bus backend: memory, nats or redis
	RealtimeBackend string
	NATSURL         string
	RedisURL        string

	// Kafka settings, empty brokers disables message events
	KafkaBrokers      string
	KafkaTopic        string
	KafkaGroupID      string
	NotificationsIcon string

	// Auth settings
	JWTSecret string
	APIKey    string // static key for the internal API

	// Realtime tuning
	TypingTimeout  time.Duration
	TypingThrottle time.Duration
	PresenceTTL    time.Duration
	PresenceMirror bool

	// Messaging limits
	MessageRateLimit  int
	MessageRateWindow time.Duration

	// WebSocket settings
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64

	// Payment onboarding endpoint (returns an account link URL)
	OnboardingURL string

	// Tracing, empty endpoint disables export
	OTELEndpoint    string
	OTELServiceName string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARN: failed to load .env: %v", err)
	}

	return &Config{
		HTTPPort:          getEnvInt("HTTP_PORT", 8080),
		InternalPort:      getEnvInt("INTERNAL_PORT", 8081),
		DatabaseURL:       getEnv("DATABASE_URL", "file:tradiehelper.db?cache=shared&mode=rwc"),
		RealtimeBackend:   strings.ToLower(getEnv("REALTIME_BACKEND", "memory")),
		NATSURL:           getEnv("NATS_URL", "nats://localhost:4222"),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		KafkaBrokers:      getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:        getEnv("KAFKA_TOPIC_MESSAGES", "messages.new"),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "tradiehelper-notify"),
		NotificationsIcon: getEnv("NOTIFICATION_ICON", "/icons/icon-192.png"),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		APIKey:            getEnv("API_KEY", ""),
		TypingTimeout:     time.Duration(getEnvInt("TYPING_TIMEOUT_MS", 3000)) * time.Millisecond,
		TypingThrottle:    time.Duration(getEnvInt("TYPING_THROTTLE_MS", 1000)) * time.Millisecond,
		PresenceTTL:       time.Duration(getEnvInt("PRESENCE_TTL_MS", 60000)) * time.Millisecond,
		PresenceMirror:    getEnvBool("PRESENCE_MIRROR", true),
		MessageRateLimit:  getEnvInt("MESSAGE_RATE_LIMIT", 30),
		MessageRateWindow: time.Duration(getEnvInt("MESSAGE_RATE_WINDOW_MS", 60000)) * time.Millisecond,
		PingInterval:      time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		WriteTimeout:      time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		ReadTimeout:       time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 60000)) * time.Millisecond,
		MaxMessageSize:    int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),
		OnboardingURL:     getEnv("PAYMENTS_ONBOARDING_URL", ""),
		OTELEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELServiceName:   getEnv("OTEL_SERVICE_NAME", "tradiehelper"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
