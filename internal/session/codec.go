// codec.go

// Signed session cookie encoding/decoding and expiry evaluation.
//
// Wire format: base64url(JSON(record)) + "." + hex(HMAC-SHA256(payload)).
// A legacy bare-JSON cookie (no signature segment) is still accepted on the
// read path for cookies issued before signing was introduced. The fallback is
// ordered: the signed format always wins when a signer is configured and the
// value splits into two segments.
package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CookieName is the browser cookie carrying the serialized session.
const CookieName = "auth-session"

// Record is the minimal identity claim carried in the auth-session cookie.
// Field names are fixed by cookies already in the wild.
type Record struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	// Expire is an ISO-8601 timestamp; empty means the session never expires.
	Expire string `json:"expire,omitempty"`
}

// valid reports whether the record carries both mandatory identifiers.
func (r *Record) valid() bool {
	return r != nil && r.SessionID != "" && r.UserID != ""
}

// Codec serializes Records to signed cookie strings and back.
// A nil signer puts the codec in legacy mode: Decode accepts only bare JSON
// and Encode always fails.
type Codec struct {
	signer *Signer
}

// NewCodec returns a Codec signing with secret. An empty secret yields a
// legacy-only codec; a non-empty but short secret is an error.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return &Codec{}, nil
	}
	s, err := NewSigner(secret)
	if err != nil {
		return nil, err
	}
	return &Codec{signer: s}, nil
}

// Encode serializes and signs the record into a cookie value.
// Fails when no signer is configured -- unsigned credentials are never issued.
func (c *Codec) Encode(rec Record) (string, error) {
	if c.signer == nil {
		return "", fmt.Errorf("session secret not configured; refusing to issue unsigned cookie")
	}
	if !rec.valid() {
		return "", fmt.Errorf("session record missing sessionId or userId")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshaling session record: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(data)
	return payload + "." + c.signer.Sign(payload), nil
}

// Decode parses a cookie value back into a Record.
// Total function: every failure path returns nil, never an error or panic --
// a single tampered cookie must not take down request handling.
func (c *Codec) Decode(cookieValue string) *Record {
	if cookieValue == "" {
		return nil
	}

	// Signed format: payload.signature
	payload, signature, found := strings.Cut(cookieValue, ".")
	if found && payload != "" && signature != "" && c.signer != nil {
		if !c.signer.Verify(payload, signature) {
			// Wrong secret, truncation, or tampering. Do NOT fall through to
			// legacy here -- an attacker must not bypass the signature by
			// mangling a signed cookie into almost-JSON.
			return nil
		}
		data, err := base64.RawURLEncoding.DecodeString(payload)
		if err != nil {
			return nil
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil
		}
		if !rec.valid() {
			return nil
		}
		return &rec
	}

	// Legacy JSON (unsigned) fallback: whole value is the record.
	return decodeLegacy(cookieValue)
}

// decodeLegacy parses a pre-signing bare-JSON cookie.
func decodeLegacy(cookieValue string) *Record {
	var rec Record
	if err := json.Unmarshal([]byte(cookieValue), &rec); err != nil {
		return nil
	}
	if !rec.valid() {
		return nil
	}
	return &rec
}

// IsExpired reports whether the record's expiry timestamp has passed.
// Nil records, missing expiry, and unparseable expiry all count as not
// expired -- "not provably expired" rather than an error state.
func IsExpired(rec *Record) bool {
	if rec == nil || rec.Expire == "" {
		return false
	}
	t, err := time.Parse(time.RFC3339, rec.Expire)
	if err != nil {
		return false
	}
	return t.Before(time.Now())
}
