package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("STORE_TIMEOUT", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Fatalf("expected default store timeout, got %s", cfg.StoreTimeout)
	}
	if cfg.SMSProvider != "stub" {
		t.Fatalf("expected stub sms provider by default, got %s", cfg.SMSProvider)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins by default, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("STORE_TIMEOUT", "2s")
	t.Setenv("DOCTOR_CACHE_TTL", "5m")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("SMS_PROVIDER", "Twilio ")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("unexpected database url: %s", cfg.DatabaseURL)
	}
	if cfg.StoreTimeout != 2*time.Second {
		t.Fatalf("expected 2s store timeout, got %s", cfg.StoreTimeout)
	}
	if cfg.DoctorCacheTTL != 5*time.Minute {
		t.Fatalf("expected 5m cache ttl, got %s", cfg.DoctorCacheTTL)
	}
	if cfg.RateLimitBurst != 10 {
		t.Fatalf("expected burst 10, got %d", cfg.RateLimitBurst)
	}
	if cfg.SMSProvider != "twilio" {
		t.Fatalf("expected normalized sms provider, got %q", cfg.SMSProvider)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected CORS origins: %v", cfg.CORSAllowedOrigins)
	}
}

func TestGetEnvAsBoolInvalid(t *testing.T) {
	t.Setenv("REDIS_TLS", "maybe")
	cfg := Load()
	if cfg.RedisTLS {
		t.Fatal("invalid bool should fall back to default false")
	}
}
