// Package gate is the per-request interceptor run before any handler:
// public-path classification, CSRF enforcement on mutating API calls,
// session cookie verification, and identity forwarding.
//
// The gate proves authentication only. It never touches the database --
// module-level authorization is deferred to downstream handlers, which load
// the user record and resolve effective permissions themselves. That keeps
// the hot path CPU-bound with no network round trip per request.
package gate

import (
	"net/http"
	"strings"

	"github.com/dernekpanel/kapi/internal/session"
)

// Identity headers forwarded to protected API handlers.
const (
	HeaderUserID    = "x-user-id"
	HeaderSessionID = "x-session-id"
)

// publicRoutes pass through the gate with no authentication at all.
var publicRoutes = []string{
	"/login",
	"/auth",
	"/assets",
	"/favicon.ico",
	"/api/csrf",       // token issuance must be reachable pre-auth
	"/api/auth/login", // public but still CSRF-checked
	"/api/auth/logout",
	"/api/errors", // client-side error sink, rate limited elsewhere
	"/api/health",
}

// csrfExemptRoutes skip CSRF validation on mutating methods.
var csrfExemptRoutes = []string{
	"/api/csrf",
	"/api/errors",
}

// protectedAPIRoutes require a valid session; the gate forwards identity
// headers for these prefixes.
var protectedAPIRoutes = []string{
	"/api/users",
	"/api/beneficiaries",
	"/api/donations",
	"/api/tasks",
	"/api/meetings",
	"/api/messages",
	"/api/aid-applications",
	"/api/storage",
}

// RouteRule maps a page path prefix to its permission requirements.
// The gate uses only the Path (authentication); the page handler enforces
// RequiredPermission / RequiredAny after loading the user record.
type RouteRule struct {
	Path               string
	RequiredPermission string
	RequiredAny        []string
}

// pageRules lists the panel pages behind authentication, first match wins.
// Paths are the panel's Turkish URLs; permission values come from the
// permission package vocabulary.
var pageRules = []RouteRule{
	{Path: "/genel"},
	{Path: "/financial-dashboard", RequiredPermission: "finance"},

	{Path: "/kullanici", RequiredPermission: "users:manage"},

	{Path: "/yardim/basvurular", RequiredPermission: "aid-applications"},
	{Path: "/yardim", RequiredPermission: "beneficiaries"},

	{Path: "/bagis/raporlar", RequiredPermission: "reports"},
	{Path: "/bagis", RequiredPermission: "donations"},

	{Path: "/burs", RequiredPermission: "scholarships"},

	{Path: "/is", RequiredPermission: "workflow"},

	{Path: "/mesaj", RequiredPermission: "messages"},

	{Path: "/partner", RequiredPermission: "partners"},

	{Path: "/fon/raporlar", RequiredPermission: "reports"},
	{Path: "/fon", RequiredPermission: "finance"},

	{Path: "/ayarlar", RequiredPermission: "settings"},
}

// IsPublicRoute reports whether path needs no authentication.
func IsPublicRoute(path string) bool {
	for _, route := range publicRoutes {
		if strings.HasPrefix(path, route) {
			return true
		}
	}
	return false
}

// IsProtectedAPIRoute reports whether path is under a protected API prefix.
func IsProtectedAPIRoute(path string) bool {
	for _, route := range protectedAPIRoutes {
		if strings.HasPrefix(path, route) {
			return true
		}
	}
	return false
}

// MatchPageRule returns the first page rule whose path prefixes the request
// path, or nil. Declaration order decides ties, so more specific prefixes are
// listed before their parents.
func MatchPageRule(path string) *RouteRule {
	for i := range pageRules {
		if strings.HasPrefix(path, pageRules[i].Path) {
			return &pageRules[i]
		}
	}
	return nil
}

// isMutating reports whether the method requires CSRF protection.
func isMutating(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// isCSRFExempt reports whether path skips CSRF validation.
func isCSRFExempt(path string) bool {
	for _, route := range csrfExemptRoutes {
		if strings.HasPrefix(path, route) {
			return true
		}
	}
	return false
}

// Gate holds the session codec and CSRF header name for the middleware.
// Stateless across requests: every verdict is recomputed from scratch.
type Gate struct {
	codec      *session.Codec
	csrfHeader string
}

// New builds a Gate. An empty csrfHeader falls back to DefaultCSRFHeader.
func New(codec *session.Codec, csrfHeader string) *Gate {
	if csrfHeader == "" {
		csrfHeader = DefaultCSRFHeader
	}
	return &Gate{codec: codec, csrfHeader: csrfHeader}
}

// checkCSRF validates the double-submit token on mutating API requests.
// Returns false after writing the 403 response when validation fails.
func (g *Gate) checkCSRF(w http.ResponseWriter, r *http.Request, path string) bool {
	if !strings.HasPrefix(path, "/api") || !isMutating(r.Method) || isCSRFExempt(path) {
		return true
	}

	headerToken := r.Header.Get(g.csrfHeader)
	var cookieToken string
	if c, err := r.Cookie(CSRFCookieName); err == nil {
		cookieToken = c.Value
	}

	if !ValidateCSRFToken(headerToken, cookieToken) {
		LogWarn(r, "csrf validation failed")
		Forbidden(w, "CSRF doğrulaması başarısız", "INVALID_CSRF")
		return false
	}
	return true
}

// readSession decodes the auth-session cookie. Nil when missing, tampered,
// legacy-invalid, or structurally incomplete. Expiry is the caller's check.
func (g *Gate) readSession(r *http.Request) *session.Record {
	c, err := r.Cookie(session.CookieName)
	if err != nil {
		return nil
	}
	return g.codec.Decode(c.Value)
}

// Middleware is the request gate. Terminal outcomes: pass through, 403 on
// CSRF failure, 401 JSON on protected API paths without a valid session,
// 302 to /login for unauthenticated page requests.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Root and public paths pass untouched. Public mutating endpoints
		// (login) validate CSRF in their own handlers.
		if path == "/" || IsPublicRoute(path) {
			next.ServeHTTP(w, r)
			return
		}

		if !g.checkCSRF(w, r, path) {
			return
		}

		protectedAPI := IsProtectedAPIRoute(path)
		rule := MatchPageRule(path)

		// Neither a protected API prefix nor a known page: pass through
		// unauthenticated. Known gap -- new pages must be added to the table.
		if !protectedAPI && rule == nil {
			next.ServeHTTP(w, r)
			return
		}

		sess := g.readSession(r)
		if sess == nil || session.IsExpired(sess) {
			if protectedAPI {
				LogWarn(r, "unauthenticated api request rejected")
				Unauthorized(w)
				return
			}
			RedirectToLogin(w, r, path)
			return
		}

		if protectedAPI {
			// Forward identity for downstream handlers; they load the user
			// record and authorize the specific action themselves.
			r.Header.Set(HeaderUserID, sess.UserID)
			r.Header.Set(HeaderSessionID, sess.SessionID)
		}

		next.ServeHTTP(w, r)
	})
}
