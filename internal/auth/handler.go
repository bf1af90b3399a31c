// handler.go -- HTTP handlers for the /api/auth/* and /api/csrf endpoints.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dernekpanel/kapi/internal/gate"
	"github.com/dernekpanel/kapi/internal/oauth"
	"github.com/dernekpanel/kapi/internal/permission"
	"github.com/dernekpanel/kapi/internal/session"
	"github.com/dernekpanel/kapi/internal/store"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// Store defines database operations needed by auth handlers.
// Satisfied by *store.PostgresStore -- defined here (at consumer) per Go convention.
type Store interface {
	// GetUser fetches a user by id. Returns pgx.ErrNoRows if absent.
	GetUser(ctx context.Context, id uuid.UUID) (*store.User, error)

	// GetUserByEmail fetches a user by email for login verification.
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)

	// UpdateLastLogin stamps last_login_at for the user.
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
}

// UserCache defines the cache operations needed by auth handlers.
// Satisfied by *store.RedisStore.
type UserCache interface {
	// SetUser caches the authorization view of a user.
	SetUser(ctx context.Context, user store.CachedUser, ttl time.Duration) error

	// DeleteUser evicts a cached user record.
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// RateLimiter checks and records rate limit state for a given key and policy.
// Satisfied by *store.RedisRateLimiter.
type RateLimiter interface {
	// Allow records an attempt; non-nil error means locked out or Redis failure.
	Allow(ctx context.Context, key string, policy store.RateLimit) error

	// Reset clears the attempt counter after a successful login.
	Reset(ctx context.Context, key string) error
}

// userCacheTTL bounds how long a permission change can lag behind for module
// handlers reading the cache.
const userCacheTTL = 5 * time.Minute

// AuthHandler holds dependencies for the auth HTTP handlers.
type AuthHandler struct {
	PS    Store
	RS    UserCache
	RL    RateLimiter
	Codec *session.Codec

	CookieDomain string
	CSRFHeader   string

	SessionTTL        time.Duration
	SessionRememberMe time.Duration
	LoginPolicy       store.RateLimit

	// OAuthProviders maps provider name to its implementation; empty when
	// OAuth login is not configured.
	OAuthProviders map[string]oauth.Provider
}

// userPayload is the identity shape returned to the panel after login and by /me.
type userPayload struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	IsActive    bool     `json:"isActive"`
}

func toUserPayload(u *store.User) userPayload {
	return userPayload{
		ID:          u.ID.String(),
		Email:       u.Email,
		Name:        u.Name,
		Role:        u.Role,
		Permissions: permission.Effective(u.Role, u.Permissions),
		IsActive:    u.IsActive,
	}
}

// validateCSRF applies the same double-submit check the gate runs, for the
// public login endpoint the gate does not cover.
func (h *AuthHandler) validateCSRF(r *http.Request) bool {
	header := h.CSRFHeader
	if header == "" {
		header = gate.DefaultCSRFHeader
	}
	var cookieToken string
	if c, err := r.Cookie(gate.CSRFCookieName); err == nil {
		cookieToken = c.Value
	}
	return gate.ValidateCSRFToken(r.Header.Get(header), cookieToken)
}

// CSRFToken handles GET /api/csrf -- issues a fresh double-submit token.
// Public: the login form needs a token before any session exists.
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := gate.GenerateCSRFToken()
	if err != nil {
		gate.InternalServerError(w, r, err)
		return
	}
	SetCSRFCookie(w, token, h.CookieDomain)
	gate.JSON(w, http.StatusOK, struct {
		Success   bool   `json:"success"`
		CSRFToken string `json:"csrfToken"`
	}{true, token})
}

// Login handles POST /api/auth/login -- email + password authentication.
// CSRF-checked, per-email rate limited, Argon2id verified with dummy-hash
// timing equalisation. On success issues the signed session cookie, rotates
// the CSRF token, and returns the identity with effective permissions.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.validateCSRF(r) {
		gate.LogWarn(r, "login rejected", "reason", "csrf_mismatch")
		gate.Forbidden(w, "CSRF doğrulaması başarısız", "INVALID_CSRF")
		return
	}

	var loginInput struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		RememberMe bool   `json:"rememberMe"`
	}
	if err := json.NewDecoder(r.Body).Decode(&loginInput); err != nil {
		gate.LogWarn(r, "failed to decode login input", "error", err)
		gate.BadRequest(w, "Geçersiz istek gövdesi")
		return
	}

	if loginInput.Email == "" || loginInput.Password == "" {
		gate.BadRequest(w, "Email ve şifre gereklidir")
		return
	}

	email := strings.ToLower(loginInput.Email)
	rateKey := fmt.Sprintf("login:email:%s", email)

	if err := h.RL.Allow(r.Context(), rateKey, h.LoginPolicy); err != nil {
		if errors.Is(err, store.ErrRateLimitExceeded) {
			gate.LogWarn(r, "login locked out", "email_prefix", emailPrefix(email))
			gate.TooManyRequests(w, "Hesap geçici olarak kilitlendi. Daha sonra tekrar deneyin.")
			return
		}
		// Redis infrastructure failure: log and continue. Locking every user
		// out because the limiter is down is the worse failure mode.
		gate.LogError(r, "rate limiter unavailable, skipping check", "error", err)
	}

	user, err := h.PS.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Run dummy hash to equalise timing with the found-user path.
			VerifyPassword(loginInput.Password, dummyPasswordHash)
			gate.LogInfo(r, "login attempted with unknown email", "email_prefix", emailPrefix(email))
		} else {
			gate.LogError(r, "failed to fetch user for login", "error", err)
		}
		gate.Unauthorized(w)
		return
	}

	if user.PasswordHash == nil {
		// OAuth-only account. Same timing and same generic answer.
		VerifyPassword(loginInput.Password, dummyPasswordHash)
		gate.LogInfo(r, "password login attempted for oauth-only account", "user_id", user.ID)
		gate.Unauthorized(w)
		return
	}

	valid, err := VerifyPassword(loginInput.Password, *user.PasswordHash)
	if err != nil {
		gate.InternalServerError(w, r, err)
		return
	}
	if !valid {
		gate.LogInfo(r, "login attempted with incorrect password", "user_id", user.ID)
		gate.Unauthorized(w)
		return
	}

	if !user.IsActive {
		gate.LogWarn(r, "login attempted for inactive account", "user_id", user.ID)
		gate.Forbidden(w, "Hesabınız devre dışı bırakılmış", "ACCOUNT_DISABLED")
		return
	}

	if err := h.RL.Reset(r.Context(), rateKey); err != nil {
		gate.LogWarn(r, "failed to reset login rate counter", "error", err)
	}

	if err := h.issueSession(w, r, user, loginInput.RememberMe); err != nil {
		gate.InternalServerError(w, r, err)
		return
	}

	gate.LogInfo(r, "user logged in", "user_id", user.ID, "remember_me", loginInput.RememberMe)
	gate.JSON(w, http.StatusOK, struct {
		Success bool        `json:"success"`
		User    userPayload `json:"user"`
	}{true, toUserPayload(user)})
}

// issueSession encodes and sets the signed session cookie, rotates the CSRF
// token, stamps last_login_at, and warms the user cache. Cache and stamp
// failures are non-fatal; the cookie is the product here.
func (h *AuthHandler) issueSession(w http.ResponseWriter, r *http.Request, user *store.User, rememberMe bool) error {
	sessionID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating session id: %w", err)
	}

	ttl := h.SessionTTL
	if rememberMe {
		ttl = h.SessionRememberMe
	}
	expiresAt := time.Now().Add(ttl)

	cookieValue, err := h.Codec.Encode(session.Record{
		SessionID: sessionID.String(),
		UserID:    user.ID.String(),
		Expire:    expiresAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		// No secret configured. Refusing login beats issuing an unsigned cookie.
		return fmt.Errorf("encoding session cookie: %w", err)
	}

	csrfToken, err := gate.GenerateCSRFToken()
	if err != nil {
		return err
	}

	SetSessionCookie(w, cookieValue, h.CookieDomain, expiresAt)
	SetCSRFCookie(w, csrfToken, h.CookieDomain)

	if err := h.PS.UpdateLastLogin(r.Context(), user.ID); err != nil {
		gate.LogWarn(r, "failed to stamp last login", "error", err, "user_id", user.ID)
	}
	if err := h.RS.SetUser(r.Context(), store.CachedUser{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        user.Role,
		Permissions: user.Permissions,
		IsActive:    user.IsActive,
	}, userCacheTTL); err != nil {
		gate.LogWarn(r, "failed to warm user cache", "error", err, "user_id", user.ID)
	}
	return nil
}

// Logout handles POST /api/auth/logout -- clears both cookies.
// Stateless sessions have nothing to revoke server-side; the user cache entry
// is evicted so a permissions change during the session does not linger.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(session.CookieName); err == nil {
		if rec := h.Codec.Decode(c.Value); rec != nil {
			if id, err := uuid.FromString(rec.UserID); err == nil {
				if err := h.RS.DeleteUser(r.Context(), id); err != nil {
					gate.LogWarn(r, "failed to evict cached user on logout", "error", err)
				}
			}
			gate.LogInfo(r, "user logged out", "user_id", rec.UserID)
		}
	}

	ClearSessionCookie(w, h.CookieDomain)
	ClearCSRFCookie(w, h.CookieDomain)
	gate.JSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{true})
}

// Me handles GET /api/auth/me -- returns the authenticated identity with
// effective permissions. Reads the cookie directly (the route is outside the
// gate's protected prefixes) so the panel can probe session state cheaply.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	var rec *session.Record
	if c, err := r.Cookie(session.CookieName); err == nil {
		rec = h.Codec.Decode(c.Value)
	}
	if rec == nil || session.IsExpired(rec) {
		gate.Unauthorized(w)
		return
	}

	userID, err := uuid.FromString(rec.UserID)
	if err != nil {
		gate.LogWarn(r, "session cookie carries non-uuid user id", "user_id", rec.UserID)
		gate.Unauthorized(w)
		return
	}

	user, err := h.PS.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			gate.Unauthorized(w)
			return
		}
		gate.InternalServerError(w, r, err)
		return
	}
	if !user.IsActive {
		gate.Unauthorized(w)
		return
	}

	gate.JSON(w, http.StatusOK, struct {
		Success bool        `json:"success"`
		User    userPayload `json:"user"`
	}{true, toUserPayload(user)})
}

// ClientError handles POST /api/errors -- the panel's client-side error sink.
// Logged and acknowledged; nothing is stored.
func (h *AuthHandler) ClientError(w http.ResponseWriter, r *http.Request) {
	var report struct {
		Message string `json:"message"`
		Source  string `json:"source"`
		Stack   string `json:"stack"`
	}
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		gate.BadRequest(w, "Geçersiz istek gövdesi")
		return
	}
	gate.LogWarn(r, "client error report", "message", report.Message, "source", report.Source)
	w.WriteHeader(http.StatusNoContent)
}

// emailPrefix truncates an email for logs. Full addresses stay out of logs.
func emailPrefix(email string) string {
	if len(email) <= 3 {
		return email
	}
	return email[:3] + "***"
}
