package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dernekpanel/kapi/internal/api"
	"github.com/dernekpanel/kapi/internal/auth"
	"github.com/dernekpanel/kapi/internal/config"
	"github.com/dernekpanel/kapi/internal/gate"
	"github.com/dernekpanel/kapi/internal/oauth"
	"github.com/dernekpanel/kapi/internal/session"
	"github.com/dernekpanel/kapi/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed migrations/*.sql
var migrationsDir embed.FS

func main() {
	// Load config first so the log level applies from the start.
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}

	// Include source location in log entries at debug level only.
	addSrc := cfg.LogLevel == slog.LevelDebug

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: addSrc,
	})))

	// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run() is a separate func so deferred closes always execute before os.Exit.
	if err := run(ctx, cfg, nil); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// run holds all server logic and returns error instead of calling os.Exit, so
// deferred resource cleanup (ps.Close, rdb.Close) always runs. Shuts down when
// ctx is cancelled. If ready is non-nil, the server's base URL is sent on it
// once the listener is bound.
func run(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	ps, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to set up postgres store: %w", err)
	}
	defer ps.Close()

	migrationsFS, err := fs.Sub(migrationsDir, "migrations")
	if err != nil {
		return fmt.Errorf("failed to access embedded migrations: %w", err)
	}
	if err := ps.Migrate(ctx, migrationsFS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Shared Redis client; cache and rate limiter share one connection pool.
	rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to set up redis client: %w", err)
	}
	defer rdb.Close()

	rs := store.NewRedisStore(rdb)
	rl := store.NewRedisRateLimiter(rdb)

	codec, err := session.NewCodec(cfg.SessionSecret)
	if err != nil {
		return fmt.Errorf("failed to set up session codec: %w", err)
	}

	providers := map[string]oauth.Provider{}
	if cfg.OAuthEnabled() {
		google, err := oauth.NewGoogleProvider(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		if err != nil {
			return fmt.Errorf("failed to set up google oauth: %w", err)
		}
		providers[google.Name()] = google
	}

	h := &auth.AuthHandler{
		PS:           ps,
		RS:           rs,
		RL:           rl,
		Codec:        codec,
		CookieDomain: cfg.CookieDomain,
		CSRFHeader:   cfg.CSRFHeader,

		SessionTTL:        cfg.SessionTTL,
		SessionRememberMe: cfg.SessionRememberMe,
		LoginPolicy: store.RateLimit{
			MaxAttempts: cfg.RateLoginMax,
			Window:      cfg.RateLoginWindow,
			LockoutTTL:  cfg.RateLoginLockout,
		},

		OAuthProviders: providers,
	}

	loader := &api.IdentityLoader{PS: ps, RS: rs}
	mh := &api.ModuleHandler{Identity: loader, PS: ps}
	ph := &api.PageHandler{Identity: loader, Codec: codec}

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	g := gate.New(codec, cfg.CSRFHeader)
	server := &http.Server{Handler: buildRouter(g, h, mh, ph)}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("kapi listening", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildRouter wires all routes and middleware. The gate runs globally; route
// classification (public, protected API, page) happens inside it, so handlers
// below only see requests the gate allowed through.
func buildRouter(g *gate.Gate, h *auth.AuthHandler, mh *api.ModuleHandler, ph *api.PageHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(g.Middleware)

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/api/csrf", h.CSRFToken)
	r.Post("/api/auth/login", h.Login)
	r.Post("/api/auth/logout", h.Logout)
	r.Get("/api/auth/me", h.Me)
	r.Post("/api/errors", h.ClientError)

	if len(h.OAuthProviders) > 0 {
		r.Get("/api/auth/oauth/{provider}", h.OAuthRedirect)
		r.Get("/api/auth/oauth/{provider}/callback", h.OAuthCallback)
	}

	// Protected module endpoints. The gate guarantees a valid session and
	// forwards x-user-id; permission checks happen in the handlers.
	r.Get("/api/users", mh.Users)
	r.Get("/api/beneficiaries", mh.Beneficiaries)
	r.Get("/api/donations", mh.Donations)
	r.Get("/api/tasks", mh.Tasks)

	// Panel pages. The gate redirects unauthenticated requests to /login;
	// the page handler enforces the per-page permission rules.
	for _, path := range []string{
		"/genel", "/financial-dashboard", "/kullanici", "/yardim", "/bagis",
		"/burs", "/is", "/mesaj", "/partner", "/fon", "/ayarlar",
	} {
		r.Get(path, ph.Serve)
		r.Get(path+"/*", ph.Serve)
	}

	return r
}
