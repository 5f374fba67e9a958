package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("NEGOTIATION_STORE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("EMAIL_PROVIDER", "")
	t.Setenv("EVENTS_QUEUE_URL", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.NegotiationStore != "redis" {
		t.Fatalf("expected redis negotiation store by default, got %s", cfg.NegotiationStore)
	}
	if cfg.NegotiationTTL != 30*24*time.Hour {
		t.Fatalf("expected default negotiation ttl, got %s", cfg.NegotiationTTL)
	}
	if cfg.SlotCacheTTL != 30*time.Second {
		t.Fatalf("expected default slot cache ttl, got %s", cfg.SlotCacheTTL)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.UsesAWS() {
		t.Fatalf("expected AWS unused by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("NEGOTIATION_STORE", " DynamoDB ")
	t.Setenv("NEGOTIATION_TTL", "48h")
	t.Setenv("MAX_OFFERED_SLOTS", "6")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, ,https://admin.example.com")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.NegotiationStore != "dynamodb" {
		t.Fatalf("expected normalized negotiation store, got %q", cfg.NegotiationStore)
	}
	if cfg.NegotiationTTL != 48*time.Hour {
		t.Fatalf("expected ttl override, got %s", cfg.NegotiationTTL)
	}
	if cfg.MaxOfferedSlots != 6 {
		t.Fatalf("expected max offered slots override, got %d", cfg.MaxOfferedSlots)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit override, got %v", cfg.RateLimitRPS)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected 2 CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.UsesAWS() {
		t.Fatalf("expected dynamodb store to require AWS")
	}
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("MAX_OFFERED_SLOTS", "lots")
	t.Setenv("SLOT_CACHE_TTL", "soon")
	cfg := Load()
	if cfg.MaxOfferedSlots != 10 {
		t.Fatalf("expected default on bad int, got %d", cfg.MaxOfferedSlots)
	}
	if cfg.SlotCacheTTL != 30*time.Second {
		t.Fatalf("expected default on bad duration, got %s", cfg.SlotCacheTTL)
	}
}
