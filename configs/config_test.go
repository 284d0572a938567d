package configs

import (
	"errors"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "GEMINI_MODEL", "MODEL_NAME",
		"RATE_LIMIT_COOLDOWN", "RATE_LIMIT_CONCURRENCY", "ALLOWED_ORIGINS", "MAX_UPLOAD_MB",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ModelName != "gemini-2.5-flash" {
		t.Fatalf("unexpected model %q", cfg.ModelName)
	}
	if cfg.RateLimitConcurrency != 1 {
		t.Fatalf("expected concurrency 1, got %d", cfg.RateLimitConcurrency)
	}
	if cfg.RateLimitCooldown != 6*time.Second {
		t.Fatalf("expected 6s cooldown, got %s", cfg.RateLimitCooldown)
	}
	if cfg.MaxUploadBytes != 50*1024*1024 {
		t.Fatalf("unexpected max upload bytes %d", cfg.MaxUploadBytes)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("expected 2 default origins, got %v", cfg.AllowedOrigins)
	}
}

func TestLoadLegacyKeyNames(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "legacy-key")
	t.Setenv("MODEL_NAME", "gemini-2.5-pro")
	t.Setenv("RATE_LIMIT_COOLDOWN", "250ms")
	t.Setenv("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.GeminiAPIKey != "legacy-key" {
		t.Fatalf("expected fallback api key, got %q", cfg.GeminiAPIKey)
	}
	if cfg.ModelName != "gemini-2.5-pro" {
		t.Fatalf("expected fallback model name, got %q", cfg.ModelName)
	}
	if cfg.RateLimitCooldown != 250*time.Millisecond {
		t.Fatalf("unexpected cooldown %s", cfg.RateLimitCooldown)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadRejectsZeroConcurrency(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("RATE_LIMIT_CONCURRENCY", "0")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero concurrency")
	}
}
