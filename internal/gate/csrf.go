// csrf.go -- double-submit CSRF token generation and validation.
//
// The client fetches a token from /api/csrf; the server sets it as the
// csrf-token cookie and the client echoes it back in a request header on
// every mutating call. The gate compares header and cookie values exactly.
package gate

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// CSRFCookieName is the cookie holding the raw CSRF token.
const CSRFCookieName = "csrf-token"

// DefaultCSRFHeader is used when CSRF_HEADER is not configured.
const DefaultCSRFHeader = "x-csrf-token"

// GenerateCSRFToken returns a 256-bit random token as lowercase hex.
func GenerateCSRFToken() (string, error) {
	var token [32]byte
	if _, err := rand.Read(token[:]); err != nil {
		return "", fmt.Errorf("generating csrf token: %w", err)
	}
	return hex.EncodeToString(token[:]), nil
}

// ValidateCSRFToken reports whether the header token matches the cookie token.
// Both must be non-empty; comparison is constant-time to avoid leaking the
// match position of a guessed token.
func ValidateCSRFToken(headerToken, cookieToken string) bool {
	if headerToken == "" || cookieToken == "" {
		return false
	}
	if len(headerToken) != len(cookieToken) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookieToken)) == 1
}
