// cookies.go

// Session and CSRF cookie management.
package auth

import (
	"net/http"
	"time"

	"github.com/dernekpanel/kapi/internal/gate"
	"github.com/dernekpanel/kapi/internal/session"
)

// SetSessionCookie writes the signed auth-session cookie.
// HttpOnly: the session is never readable from page scripts.
func SetSessionCookie(w http.ResponseWriter, value, domain string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   domain,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
	})
}

// ClearSessionCookie overwrites auth-session with MaxAge=-1 to trigger browser deletion.
func ClearSessionCookie(w http.ResponseWriter, domain string) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// SetCSRFCookie writes the csrf-token cookie. Not HttpOnly -- the double-submit
// scheme needs the panel's scripts to read the token and echo it in a header.
func SetCSRFCookie(w http.ResponseWriter, token, domain string) {
	http.SetCookie(w, &http.Cookie{
		Name:     gate.CSRFCookieName,
		Value:    token,
		Path:     "/",
		Domain:   domain,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((12 * time.Hour).Seconds()),
	})
}

// ClearCSRFCookie expires the csrf-token cookie immediately.
func ClearCSRFCookie(w http.ResponseWriter, domain string) {
	http.SetCookie(w, &http.Cookie{
		Name:     gate.CSRFCookieName,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
