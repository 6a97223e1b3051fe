package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		StoreDriver:        DriverMemory,
		RealtimeDriver:     DriverMemory,
		EventsPath:         "ppe",
		EventRetention:     20,
		HighRiskThreshold:  3,
		MaxBodyBytes:       1 << 20,
		RateLimitPerMinute: 60,
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("EVENT_RETENTION", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()
	if cfg.StoreDriver != DriverPostgres {
		t.Fatalf("expected postgres store driver, got %q", cfg.StoreDriver)
	}
	if cfg.EventRetention != 20 {
		t.Fatalf("expected retention 20, got %d", cfg.EventRetention)
	}
	if cfg.HighRiskThreshold != 3 {
		t.Fatalf("expected threshold 3, got %d", cfg.HighRiskThreshold)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("expected no brokers, got %v", cfg.KafkaBrokers)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")
	t.Setenv("IDEMPOTENCY_TTL", "90s")
	t.Setenv("AUTO_ESCALATE", "notabool")

	cfg := Load()
	if cfg.StoreDriver != DriverMemory {
		t.Fatalf("expected memory store driver, got %q", cfg.StoreDriver)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.IdempotencyTTL != 90*time.Second {
		t.Fatalf("expected 90s ttl, got %v", cfg.IdempotencyTTL)
	}
	if cfg.AutoEscalate {
		t.Fatal("expected invalid bool to fall back to false")
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := validConfig()
	cfg.StoreDriver = DriverPostgres
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for postgres without DATABASE_URL")
	}

	cfg = validConfig()
	cfg.Environment = "production"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for memory store in production")
	}

	cfg = validConfig()
	cfg.HighRiskThreshold = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero threshold")
	}

	cfg = validConfig()
	cfg.EmailEnabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for email without smtp host")
	}
}
