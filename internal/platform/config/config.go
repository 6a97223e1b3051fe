package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

type Config struct {
	Addr               string
	Environment        string
	FrontendDir        string
	StoreDriver        string
	DatabaseURL        string
	RunMigrations      bool
	MigrationsDir      string
	RealtimeDriver     string
	RedisURL           string
	RealtimePrefix     string
	EventsPath         string
	EventRetention     int
	HighRiskThreshold  int
	AutoEscalate       bool
	KafkaBrokers       []string
	KafkaAuditTopic    string
	EmailFrom          string
	EmailEnabled       bool
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPassword       string
	SMTPUseTLS         bool
	MaxBodyBytes       int64
	RateLimitPerMinute int
	IdempotencyTTL     time.Duration
	MetricsEnabled     bool
}

func Load() Config {
	return Config{
		Addr:               getEnv("APP_ADDR", ":8080"),
		Environment:        getEnv("APP_ENV", "development"),
		FrontendDir:        getEnv("FRONTEND_DIR", ""),
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RunMigrations:      getEnvBool("RUN_MIGRATIONS", true),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "migrations"),
		RealtimeDriver:     strings.ToLower(getEnv("REALTIME_DRIVER", DriverRedis)),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RealtimePrefix:     getEnv("REALTIME_PREFIX", "ppewatch"),
		EventsPath:         getEnv("EVENTS_PATH", "ppe"),
		EventRetention:     getEnvInt("EVENT_RETENTION", 20),
		HighRiskThreshold:  getEnvInt("HIGH_RISK_THRESHOLD", 3),
		AutoEscalate:       getEnvBool("AUTO_ESCALATE", false),
		KafkaBrokers:       getEnvList("KAFKA_BROKERS"),
		KafkaAuditTopic:    getEnv("KAFKA_AUDIT_TOPIC", "ppewatch.reprimands"),
		EmailFrom:          getEnv("EMAIL_FROM", "no-reply@example.com"),
		EmailEnabled:       getEnvBool("EMAIL_ENABLED", false),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnvInt("SMTP_PORT", 587),
		SMTPUser:           getEnv("SMTP_USER", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:         getEnvBool("SMTP_USE_TLS", true),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		IdempotencyTTL:     getEnvDuration("IDEMPOTENCY_TTL", 10*time.Minute),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	case DriverMemory:
		if c.Environment == "production" {
			return fmt.Errorf("STORE_DRIVER=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q", DriverPostgres, DriverMemory)
	}
	switch c.RealtimeDriver {
	case DriverRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("REDIS_URL is required when REALTIME_DRIVER is redis")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("REALTIME_DRIVER must be %q or %q", DriverRedis, DriverMemory)
	}
	if strings.TrimSpace(c.EventsPath) == "" {
		return fmt.Errorf("EVENTS_PATH is required")
	}
	if c.EventRetention < 0 {
		return fmt.Errorf("EVENT_RETENTION must not be negative")
	}
	if c.HighRiskThreshold <= 0 {
		return fmt.Errorf("HIGH_RISK_THRESHOLD must be positive")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	return nil
}
