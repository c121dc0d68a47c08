package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "GATEWAY_DELAY", "REDIS_ADDR", "CORS_ALLOWED_ORIGINS", "VELOCITY_ENABLED"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.GatewayDelay != 500*time.Millisecond {
		t.Fatalf("expected default gateway delay, got %s", cfg.GatewayDelay)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("expected redis disabled by default, got %s", cfg.RedisAddr)
	}
	if !cfg.VelocityEnabled {
		t.Fatalf("expected velocity enabled by default")
	}
	if cfg.VelocityMaxPaymentsPerPatron != 5 || cfg.VelocityMaxRefundsPerTxn != 1 {
		t.Fatalf("unexpected velocity limits: %d/%d", cfg.VelocityMaxPaymentsPerPatron, cfg.VelocityMaxRefundsPerTxn)
	}
	if cfg.VelocityRefundWindow != 7*24*time.Hour {
		t.Fatalf("expected default refund window, got %s", cfg.VelocityRefundWindow)
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Fatalf("expected no cors origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.IsProduction() {
		t.Fatalf("development should not be production")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GATEWAY_DELAY", "0s")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("VELOCITY_MAX_PAYMENTS_PER_PATRON", "10")
	t.Setenv("VELOCITY_PAYMENT_WINDOW", "30m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://library.example.org, ,https://kiosk.example.org")
	t.Setenv("METRICS_ENABLED", "false")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production env")
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level override, got %s", cfg.LogLevel)
	}
	if cfg.GatewayDelay != 0 {
		t.Fatalf("expected zero delay, got %s", cfg.GatewayDelay)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("expected redis override, got %s", cfg.RedisAddr)
	}
	if cfg.VelocityMaxPaymentsPerPatron != 10 {
		t.Fatalf("expected payment limit override, got %d", cfg.VelocityMaxPaymentsPerPatron)
	}
	if cfg.VelocityPaymentWindow != 30*time.Minute {
		t.Fatalf("expected payment window override, got %s", cfg.VelocityPaymentWindow)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://kiosk.example.org" {
		t.Fatalf("unexpected cors origins: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.MetricsEnabled {
		t.Fatalf("expected metrics disabled")
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("GATEWAY_DELAY", "soon")
	t.Setenv("VELOCITY_MAX_REFUNDS_PER_TRANSACTION", "many")
	t.Setenv("VELOCITY_ENABLED", "maybe")
	cfg := Load()
	if cfg.GatewayDelay != 500*time.Millisecond {
		t.Fatalf("expected fallback delay, got %s", cfg.GatewayDelay)
	}
	if cfg.VelocityMaxRefundsPerTxn != 1 {
		t.Fatalf("expected fallback refund limit, got %d", cfg.VelocityMaxRefundsPerTxn)
	}
	if !cfg.VelocityEnabled {
		t.Fatalf("expected fallback velocity enabled")
	}
}
