// signer.go

// HMAC-SHA256 payload signing for session cookies.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// MinSecretLength mirrors config.MinSecretLength. Duplicated here so the
// package stands alone -- a Signer must never exist with a weak key, no
// matter who constructs it.
const MinSecretLength = 16

// Signer computes and verifies HMAC-SHA256 signatures over cookie payloads.
// Safe for concurrent use; the key is never mutated after construction.
type Signer struct {
	key []byte
}

// NewSigner creates a Signer with the given secret.
// Fails loudly on a missing or short secret -- there is no fallback key.
func NewSigner(secret string) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d characters", MinSecretLength)
	}
	return &Signer{key: []byte(secret)}, nil
}

// Sign returns the lowercase-hex HMAC-SHA256 of payload.
// Deterministic: identical payloads always produce identical signatures.
func (s *Signer) Sign(payload string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the expected HMAC for payload.
// Comparison is constant-time so a mismatch position never leaks through timing.
func (s *Signer) Verify(payload, signature string) bool {
	return hmac.Equal([]byte(s.Sign(payload)), []byte(signature))
}
