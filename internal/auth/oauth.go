// oauth.go -- OAuth2 redirect and callback handlers for panel single sign-on.
// Provider-specific logic lives in internal/oauth/*.go.
//
// Membership is closed: the callback only signs in emails that already belong
// to an active panel user. There is no account auto-provisioning; new staff
// are created by an administrator first.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dernekpanel/kapi/internal/gate"
	"github.com/dernekpanel/kapi/internal/oauth"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// oauthStateCookieName holds state + PKCE verifier during the provider round-trip.
const oauthStateCookieName = "__Host-oauth-state"

type oauthStateCookie struct {
	State    string `json:"state"`
	Verifier string `json:"verifier"`
}

// OAuthRedirect handles GET /api/auth/oauth/{provider} -- generates PKCE +
// state, stores
// them in a short-lived HttpOnly cookie, and redirects the browser to the
// provider's consent page.
func (h *AuthHandler) OAuthRedirect(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.oauthProvider(r, w)
	if !ok {
		return
	}

	var stateBytes, verifierBytes [32]byte
	if _, err := rand.Read(stateBytes[:]); err != nil {
		gate.InternalServerError(w, r, err)
		return
	}
	if _, err := rand.Read(verifierBytes[:]); err != nil {
		gate.InternalServerError(w, r, err)
		return
	}

	state := base64.RawURLEncoding.EncodeToString(stateBytes[:])
	codeVerifier := base64.RawURLEncoding.EncodeToString(verifierBytes[:])
	challenge := sha256.Sum256([]byte(codeVerifier))
	codeChallenge := base64.RawURLEncoding.EncodeToString(challenge[:])

	setOAuthStateCookie(w, state, codeVerifier)
	http.Redirect(w, r, provider.AuthCodeURL(state, codeChallenge), http.StatusFound)
}

// OAuthCallback handles GET /api/auth/oauth/{provider}/callback -- verifies state,
// exchanges the authorization code for identity claims, maps the verified
// email to an existing active user, and issues the session cookie.
// Successful logins land back on the panel home page.
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.oauthProvider(r, w)
	if !ok {
		return
	}

	// Read and immediately clear the state cookie to prevent replay.
	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil {
		gate.LogWarn(r, "oauth callback missing state cookie")
		gate.BadRequest(w, "Eksik oauth durumu")
		return
	}
	clearOAuthStateCookie(w)

	rawJSON, err := base64.RawURLEncoding.DecodeString(stateCookie.Value)
	if err != nil {
		gate.LogWarn(r, "oauth callback state cookie has bad encoding", "error", err)
		gate.BadRequest(w, "Geçersiz oauth durumu")
		return
	}
	var sc oauthStateCookie
	if err := json.Unmarshal(rawJSON, &sc); err != nil {
		gate.LogWarn(r, "oauth callback state cookie has bad json", "error", err)
		gate.BadRequest(w, "Geçersiz oauth durumu")
		return
	}

	// Constant-time comparison prevents a timing oracle on the state value.
	if subtle.ConstantTimeCompare([]byte(sc.State), []byte(r.URL.Query().Get("state"))) != 1 {
		gate.LogWarn(r, "oauth callback state mismatch")
		gate.Unauthorized(w)
		return
	}

	claims, err := provider.Exchange(r.Context(), r.URL.Query().Get("code"), sc.Verifier)
	if err != nil {
		gate.LogWarn(r, "oauth exchange failed", "error", err, "provider", provider.Name())
		gate.Unauthorized(w)
		return
	}
	if !claims.EmailVerified {
		gate.LogWarn(r, "oauth account email not verified", "provider", provider.Name())
		gate.Unauthorized(w)
		return
	}

	user, err := h.PS.GetUserByEmail(r.Context(), strings.ToLower(claims.Email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			gate.LogInfo(r, "oauth login for unknown email", "email_prefix", emailPrefix(claims.Email), "provider", provider.Name())
			gate.Forbidden(w, "Bu hesap panele kayıtlı değil", "ACCOUNT_NOT_FOUND")
			return
		}
		gate.InternalServerError(w, r, err)
		return
	}
	if !user.IsActive {
		gate.LogWarn(r, "oauth login for inactive account", "user_id", user.ID)
		gate.Forbidden(w, "Hesabınız devre dışı bırakılmış", "ACCOUNT_DISABLED")
		return
	}

	if err := h.issueSession(w, r, user, false); err != nil {
		gate.InternalServerError(w, r, err)
		return
	}

	gate.LogInfo(r, "oauth user logged in", "user_id", user.ID, "provider", provider.Name())
	http.Redirect(w, r, "/", http.StatusFound)
}

// oauthProvider reads the {provider} URL param and looks it up in
// OAuthProviders. Writes 404 and returns (nil, false) when not configured.
func (h *AuthHandler) oauthProvider(r *http.Request, w http.ResponseWriter) (oauth.Provider, bool) {
	name := chi.URLParam(r, "provider")
	p, ok := h.OAuthProviders[name]
	if !ok {
		gate.JSON(w, http.StatusNotFound, struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}{false, "Bilinmeyen sağlayıcı"})
		return nil, false
	}
	return p, true
}

func setOAuthStateCookie(w http.ResponseWriter, state, verifier string) {
	payload, _ := json.Marshal(oauthStateCookie{State: state, Verifier: verifier})
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})
}

func clearOAuthStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
