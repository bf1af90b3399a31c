// signer_test.go

// unit tests for NewSigner, Sign, and Verify.
package session

import (
	"strings"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewSigner(t *testing.T) {
	t.Run("rejects empty secret", func(t *testing.T) {
		if _, err := NewSigner(""); err == nil {
			t.Error("expected error for empty secret")
		}
	})

	t.Run("rejects secret below minimum length", func(t *testing.T) {
		if _, err := NewSigner("short-secret-15"); err == nil {
			t.Error("expected error for 15-char secret")
		}
	})

	t.Run("accepts secret at minimum length", func(t *testing.T) {
		s, err := NewSigner("0123456789abcdef")
		if err != nil {
			t.Fatalf("NewSigner returned error: %v", err)
		}
		if s == nil {
			t.Fatal("NewSigner returned nil signer")
		}
	})
}

func TestSign(t *testing.T) {
	s, err := NewSigner(testSecret)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	t.Run("is deterministic", func(t *testing.T) {
		if s.Sign("payload") != s.Sign("payload") {
			t.Error("identical payloads produced different signatures")
		}
	})

	t.Run("returns lowercase hex of SHA-256 length", func(t *testing.T) {
		sig := s.Sign("payload")
		if len(sig) != 64 {
			t.Errorf("signature length: expected 64 hex chars, got %d", len(sig))
		}
		if sig != strings.ToLower(sig) {
			t.Error("signature contains uppercase characters")
		}
		for _, r := range sig {
			if !strings.ContainsRune("0123456789abcdef", r) {
				t.Fatalf("signature contains non-hex rune %q", r)
			}
		}
	})

	t.Run("different payloads get different signatures", func(t *testing.T) {
		if s.Sign("a") == s.Sign("b") {
			t.Error("distinct payloads produced identical signatures")
		}
	})

	t.Run("different keys get different signatures", func(t *testing.T) {
		other, err := NewSigner("another-secret-key-of-decent-size")
		if err != nil {
			t.Fatalf("NewSigner: %v", err)
		}
		if s.Sign("payload") == other.Sign("payload") {
			t.Error("distinct keys produced identical signatures")
		}
	})
}

func TestVerify(t *testing.T) {
	s, err := NewSigner(testSecret)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	t.Run("accepts own signature", func(t *testing.T) {
		if !s.Verify("payload", s.Sign("payload")) {
			t.Error("Verify rejected a freshly computed signature")
		}
	})

	t.Run("rejects wrong signature", func(t *testing.T) {
		if s.Verify("payload", s.Sign("other")) {
			t.Error("Verify accepted a signature for a different payload")
		}
	})

	t.Run("rejects truncated signature", func(t *testing.T) {
		sig := s.Sign("payload")
		if s.Verify("payload", sig[:len(sig)-2]) {
			t.Error("Verify accepted a truncated signature")
		}
	})

	t.Run("rejects empty signature", func(t *testing.T) {
		if s.Verify("payload", "") {
			t.Error("Verify accepted an empty signature")
		}
	})
}
