// responses.go -- Package-wide HTTP response helpers.
//
// Shared by the gate middleware and the auth/api handlers. The panel frontend
// expects {"success":false,"error":...} bodies on every denial, with an
// optional machine-readable "code".
package gate

import (
	"encoding/json"
	"net/http"
	"net/url"
)

// errorBody is the JSON shape for every denial response.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// JSON writes v with the given status. Encoding failures are ignored; by the
// time Encode fails the status line is already on the wire.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Unauthorized writes the 401 body the panel expects for missing/expired sessions.
func Unauthorized(w http.ResponseWriter) {
	JSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
}

// Forbidden writes a 403 with the given message and optional code.
func Forbidden(w http.ResponseWriter, message, code string) {
	JSON(w, http.StatusForbidden, errorBody{Error: message, Code: code})
}

// BadRequest writes a 400 with the given message.
func BadRequest(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, errorBody{Error: message})
}

// TooManyRequests writes a 429 with the given message.
func TooManyRequests(w http.ResponseWriter, message string) {
	JSON(w, http.StatusTooManyRequests, errorBody{Error: message})
}

// InternalServerError logs the error and writes a generic 500 body.
// Never exposes internal error details to prevent information leakage.
func InternalServerError(w http.ResponseWriter, r *http.Request, err error) {
	LogError(r, "internal server error", "error", err)
	JSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

// RedirectToLogin sends the browser to the login page, preserving the
// originally requested path so login can bounce back.
func RedirectToLogin(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, "/login?redirect="+url.QueryEscape(path), http.StatusFound)
}
