// pages.go -- panel page authorization.
//
// The gate already guarantees a valid session for these paths; this handler
// completes the deferred half of the contract by loading the user record and
// enforcing the matched rule's permission requirements. The response is the
// page shell payload the panel frontend renders from.
package api

import (
	"errors"
	"net/http"

	"github.com/dernekpanel/kapi/internal/gate"
	"github.com/dernekpanel/kapi/internal/session"

	"github.com/gofrs/uuid/v5"
)

// PageHandler authorizes panel page requests after the gate's session check.
type PageHandler struct {
	Identity *IdentityLoader
	Codec    *session.Codec
}

// Serve handles GET on every registered page path.
func (h *PageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	rule := gate.MatchPageRule(r.URL.Path)
	if rule == nil {
		http.NotFound(w, r)
		return
	}

	// Pages do not get forwarded identity headers; read the cookie directly.
	var rec *session.Record
	if c, err := r.Cookie(session.CookieName); err == nil {
		rec = h.Codec.Decode(c.Value)
	}
	if rec == nil || session.IsExpired(rec) {
		gate.RedirectToLogin(w, r, r.URL.Path)
		return
	}
	userID, err := uuid.FromString(rec.UserID)
	if err != nil {
		gate.RedirectToLogin(w, r, r.URL.Path)
		return
	}

	identity, err := h.Identity.Load(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			gate.RedirectToLogin(w, r, r.URL.Path)
			return
		}
		gate.InternalServerError(w, r, err)
		return
	}

	if rule.RequiredPermission != "" && !identity.Has(rule.RequiredPermission) {
		gate.LogWarn(r, "page access denied", "user_id", identity.UserID, "required", rule.RequiredPermission)
		gate.Forbidden(w, forbiddenMessage, "FORBIDDEN")
		return
	}
	if len(rule.RequiredAny) > 0 && !identity.HasAny(rule.RequiredAny) {
		gate.LogWarn(r, "page access denied", "user_id", identity.UserID, "required_any", rule.RequiredAny)
		gate.Forbidden(w, forbiddenMessage, "FORBIDDEN")
		return
	}

	gate.JSON(w, http.StatusOK, struct {
		Success bool   `json:"success"`
		Page    string `json:"page"`
		Name    string `json:"name"`
		Role    string `json:"role"`
	}{true, rule.Path, identity.Name, identity.Role})
}
