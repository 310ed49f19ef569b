package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

type Config struct {
	HTTPPort           string
	APIBaseURL         string
	StorageBackend     string
	SQLitePath         string
	RedisAddr          string
	RedisPassword      string
	RedisTTL           time.Duration
	MongoURI           string
	MongoDBName        string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	SessionIdleTimeout time.Duration
	MaxRequestBodySize int64
	BreakerEnabled     bool
	RefreshCartOnLogin bool
	LogLevel           string
	OTLPEndpoint       string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present; variables already set
// in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		APIBaseURL:         getEnv("API_BASE_URL", "http://127.0.0.1:8000"),
		StorageBackend:     getEnv("STORAGE_BACKEND", BackendMemory),
		SQLitePath:         getEnv("SQLITE_PATH", "./storefront.db"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTTL:           getDuration("REDIS_TTL", 0),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:        getEnv("MONGO_DB_NAME", "storefront"),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		SessionIdleTimeout: getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		MaxRequestBodySize: 1 << 20, // 1MB
		BreakerEnabled:     getBool("CIRCUIT_BREAKER_ENABLED", false),
		RefreshCartOnLogin: getBool("CART_REFRESH_ON_LOGIN", true),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		OTLPEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}
