package config

import (
	"testing"
	"time"
)

// --- LoadConfig ---

func TestLoadConfig(t *testing.T) {
	// Helper sets the minimum required env vars for a valid config
	setRequired := func(t *testing.T) {
		t.Helper()
		t.Setenv("DATABASE_URL", "postgres://localhost/kapi")
		t.Setenv("REDIS_URL", "redis://localhost:6379")
		t.Setenv("SESSION_SECRET", "")
		t.Setenv("CSRF_HEADER", "")
		t.Setenv("GOOGLE_CLIENT_ID", "")
		t.Setenv("GOOGLE_CLIENT_SECRET", "")
		t.Setenv("GOOGLE_REDIRECT_URL", "")
	}

	t.Run("returns valid config with all required vars", func(t *testing.T) {
		setRequired(t)

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.DatabaseURL != "postgres://localhost/kapi" {
			t.Errorf("DatabaseURL: got %q", cfg.DatabaseURL)
		}
		if cfg.RedisURL != "redis://localhost:6379" {
			t.Errorf("RedisURL: got %q", cfg.RedisURL)
		}
	})

	t.Run("errors when DATABASE_URL is missing", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DATABASE_URL", "")

		if _, err := LoadConfig(); err == nil {
			t.Fatal("expected error for missing DATABASE_URL, got nil")
		}
	})

	t.Run("errors when REDIS_URL is missing", func(t *testing.T) {
		setRequired(t)
		t.Setenv("REDIS_URL", "")

		if _, err := LoadConfig(); err == nil {
			t.Fatal("expected error for missing REDIS_URL, got nil")
		}
	})

	t.Run("defaults PORT to 7860", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PORT", "")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Port != "7860" {
			t.Errorf("Port: expected %q, got %q", "7860", cfg.Port)
		}
	})

	t.Run("errors when SESSION_SECRET is too short", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SESSION_SECRET", "short")

		if _, err := LoadConfig(); err == nil {
			t.Fatal("expected error for short SESSION_SECRET, got nil")
		}
	})

	t.Run("accepts empty SESSION_SECRET for legacy-only operation", func(t *testing.T) {
		setRequired(t)

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.SessionSecret != "" {
			t.Errorf("SessionSecret: expected empty, got %q", cfg.SessionSecret)
		}
	})

	t.Run("CSRF_HEADER defaults and lowercases", func(t *testing.T) {
		setRequired(t)

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.CSRFHeader != "x-csrf-token" {
			t.Errorf("CSRFHeader default: got %q", cfg.CSRFHeader)
		}

		t.Setenv("CSRF_HEADER", "X-Panel-CSRF")
		cfg, err = LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.CSRFHeader != "x-panel-csrf" {
			t.Errorf("CSRFHeader: expected lowercase, got %q", cfg.CSRFHeader)
		}
	})

	t.Run("session TTLs default and parse", func(t *testing.T) {
		setRequired(t)

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.SessionTTL != 24*time.Hour {
			t.Errorf("SessionTTL: expected 24h, got %s", cfg.SessionTTL)
		}
		if cfg.SessionRememberMe != 720*time.Hour {
			t.Errorf("SessionRememberMe: expected 720h, got %s", cfg.SessionRememberMe)
		}

		t.Setenv("SESSION_TTL", "90m")
		cfg, err = LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.SessionTTL != 90*time.Minute {
			t.Errorf("SessionTTL: expected 90m, got %s", cfg.SessionTTL)
		}
	})

	t.Run("invalid duration falls back to default", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SESSION_TTL", "not-a-duration")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.SessionTTL != 24*time.Hour {
			t.Errorf("SessionTTL: expected 24h fallback, got %s", cfg.SessionTTL)
		}
	})

	t.Run("partial Google OAuth config errors", func(t *testing.T) {
		setRequired(t)
		t.Setenv("GOOGLE_CLIENT_ID", "client-id")

		if _, err := LoadConfig(); err == nil {
			t.Fatal("expected error for partial oauth config, got nil")
		}
	})

	t.Run("full Google OAuth config enables oauth", func(t *testing.T) {
		setRequired(t)
		t.Setenv("GOOGLE_CLIENT_ID", "client-id")
		t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
		t.Setenv("GOOGLE_REDIRECT_URL", "https://panel.dernek.org/api/auth/oauth/google/callback")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if !cfg.OAuthEnabled() {
			t.Error("OAuthEnabled: expected true")
		}
	})

	t.Run("no OAuth config disables oauth", func(t *testing.T) {
		setRequired(t)

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.OAuthEnabled() {
			t.Error("OAuthEnabled: expected false")
		}
	})
}
