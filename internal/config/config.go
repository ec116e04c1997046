package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all environment-driven configuration for the service, per
// the configuration table in SPEC_FULL.md §6.
type Config struct {
	// Application / transport
	AppEnv     string
	AppPort    string
	AppHost    string
	AppVersion string

	// Job queue core (spec.md §6)
	WorkerPoolSize     int
	QueueMaxSize       int
	MaxJobAttempts     int
	RetryBackoffBaseMS int
	PollInterval       time.Duration
	ShutdownTimeout    time.Duration
	WorkerInitTimeout  time.Duration

	// SMTP — opaque to the core, consumed only by the email executor
	SMTP struct {
		Host      string
		Port      int
		Username  string
		Password  string
		FromEmail string
		FromName  string
		UseTLS    bool
	}

	// Redis — backs the rate limiter when set; empty means in-memory fallback
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Audit sink (GORM)
	AuditDBDSN string

	// CronScheduler
	CronDigestSpec string

	// Auth middleware
	AuthEnabled bool
	JWTSecret   string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// CORS
	CORS struct {
		AllowedOrigins []string
		AllowedMethods []string
		AllowedHeaders []string
	}

	// Logging
	LogLevel string

	// Health monitor
	HealthLogInterval time.Duration

	// WebSocket hub
	WebSocket struct {
		Enabled        bool
		MaxConnections int
	}
}

// Load reads configuration from the environment (optionally seeded by a
// .env file, in the teacher's style), applying the defaults from
// SPEC_FULL.md §6.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppEnv:     getEnv("APP_ENV", "development"),
		AppPort:    getEnv("PORT", "3000"),
		AppHost:    getEnv("APP_HOST", "0.0.0.0"),
		AppVersion: getEnv("APP_VERSION", "1.0.0"),

		WorkerPoolSize:     getEnvAsInt("WORKER_POOL_SIZE", 4),
		QueueMaxSize:       getEnvAsInt("QUEUE_MAX_SIZE", 10000),
		MaxJobAttempts:     getEnvAsInt("MAX_JOB_ATTEMPTS", 3),
		RetryBackoffBaseMS: getEnvAsInt("RETRY_BACKOFF_BASE_MS", 1000),
		PollInterval:       parseDuration(getEnv("POLL_INTERVAL", "1s"), time.Second),
		ShutdownTimeout:    parseDuration(getEnv("SHUTDOWN_TIMEOUT", "30s"), 30*time.Second),
		WorkerInitTimeout:  parseDuration(getEnv("WORKER_INIT_TIMEOUT", "5s"), 5*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		AuditDBDSN: getEnv("AUDIT_DB_DSN", "file:audit.db?mode=memory&cache=shared"),

		CronDigestSpec: getEnv("CRON_DIGEST_SPEC", ""),

		AuthEnabled: getEnvAsBool("AUTH_ENABLED", false),
		JWTSecret:   getEnv("JWT_SECRET", "dev-secret-change-in-production"),

		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 20),
		RateLimitWindow:    parseDuration(getEnv("RATE_LIMIT_WINDOW", "1s"), time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		HealthLogInterval: parseDuration(getEnv("HEALTH_LOG_INTERVAL", "60s"), 60*time.Second),
	}

	cfg.SMTP.Host = getEnv("SMTP_HOST", "localhost")
	cfg.SMTP.Port = getEnvAsInt("SMTP_PORT", 1025)
	cfg.SMTP.Username = getEnv("SMTP_USERNAME", "")
	cfg.SMTP.Password = getEnv("SMTP_PASSWORD", "")
	cfg.SMTP.FromEmail = getEnv("SMTP_FROM_EMAIL", "noreply@fluxqueue.local")
	cfg.SMTP.FromName = getEnv("SMTP_FROM_NAME", "FluxQueue")
	cfg.SMTP.UseTLS = getEnvAsBool("SMTP_USE_TLS", false)

	cfg.CORS.AllowedOrigins = strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",")
	cfg.CORS.AllowedMethods = strings.Split(getEnv("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"), ",")
	cfg.CORS.AllowedHeaders = strings.Split(getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"), ",")

	cfg.WebSocket.Enabled = getEnvAsBool("WS_ENABLED", true)
	cfg.WebSocket.MaxConnections = getEnvAsInt("WS_MAX_CONNECTIONS", 1000)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
