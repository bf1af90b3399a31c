// config.go

// Environment variable loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// MinSecretLength is the minimum accepted SESSION_SECRET length.
// Anything shorter is a misconfiguration, not a weak-but-usable key.
const MinSecretLength = 16

// Config holds all env configuration vars for kapi.
type Config struct {
	DatabaseURL  string
	RedisURL     string
	Port         string
	CookieDomain string
	LogLevel     slog.Level

	// SessionSecret signs the auth-session cookie. Optional: when empty the
	// service cannot issue cookies and only accepts legacy unsigned ones.
	// When set it must be at least MinSecretLength characters.
	SessionSecret string

	// CSRFHeader is the request header compared against the csrf-token cookie.
	// Defaults to x-csrf-token.
	CSRFHeader string

	// Session lifetimes. Defaults: 24h standard, 720h (30d) remember-me.
	SessionTTL        time.Duration
	SessionRememberMe time.Duration

	// Rate limit policy for login attempts per email.
	// Defaults: max=5, window=10m, lockout=15m.
	RateLoginMax     int
	RateLoginWindow  time.Duration
	RateLoginLockout time.Duration

	// Google OIDC login. All three empty disables the OAuth routes.
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

// LoadConfig reads environment variables and returns a validated Config.
// Returns an error if required variables (DATABASE_URL, REDIS_URL) are missing
// or if SESSION_SECRET is set but too short to sign with.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "7860"
	}

	cfg.CookieDomain = os.Getenv("COOKIE_DOMAIN")

	// Parse log level, default to info
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	// SESSION_SECRET may be absent (legacy-cookie-only operation) but a short
	// one fails startup -- silently signing with a weak key is worse than not
	// starting at all.
	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret != "" && len(cfg.SessionSecret) < MinSecretLength {
		return nil, fmt.Errorf("SESSION_SECRET must be at least %d characters", MinSecretLength)
	}
	if cfg.SessionSecret == "" {
		slog.Warn("SESSION_SECRET not set; signed session cookies cannot be issued")
	}

	cfg.CSRFHeader = strings.ToLower(os.Getenv("CSRF_HEADER"))
	if cfg.CSRFHeader == "" {
		cfg.CSRFHeader = "x-csrf-token"
	}

	cfg.SessionTTL = envDuration("SESSION_TTL", 24*time.Hour)
	cfg.SessionRememberMe = envDuration("SESSION_REMEMBER_ME_TTL", 720*time.Hour)

	cfg.RateLoginMax = envInt("RATE_LOGIN_MAX", 5)
	cfg.RateLoginWindow = envDuration("RATE_LOGIN_WINDOW", 10*time.Minute)
	cfg.RateLoginLockout = envDuration("RATE_LOGIN_LOCKOUT", 15*time.Minute)

	// Google OAuth -- all-or-nothing. A partial set is a deploy mistake.
	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	oauthSet := 0
	for _, v := range []string{cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL} {
		if v != "" {
			oauthSet++
		}
	}
	if oauthSet != 0 && oauthSet != 3 {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REDIRECT_URL must all be set together")
	}

	return cfg, nil
}

// OAuthEnabled reports whether the Google login routes should be mounted.
func (c *Config) OAuthEnabled() bool {
	return c.GoogleClientID != ""
}

// envInt reads an env var as int, returning def if missing or unparseable.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

// envDuration reads an env var as time.Duration, returning def if missing or unparseable.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
