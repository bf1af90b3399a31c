// codec_test.go

// unit tests for Codec encode/decode and IsExpired.
package session

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// mustCodec builds a signing codec or fails the test.
func mustCodec(t *testing.T, secret string) *Codec {
	t.Helper()
	c, err := NewCodec(secret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestNewCodec(t *testing.T) {
	t.Run("empty secret yields legacy-only codec", func(t *testing.T) {
		c := mustCodec(t, "")
		if _, err := c.Encode(Record{SessionID: "s", UserID: "u"}); err == nil {
			t.Error("legacy-only codec should refuse to encode")
		}
	})

	t.Run("short secret is an error", func(t *testing.T) {
		if _, err := NewCodec("too-short"); err == nil {
			t.Error("expected error for short secret")
		}
	})
}

func TestEncode(t *testing.T) {
	c := mustCodec(t, testSecret)

	t.Run("produces payload.signature", func(t *testing.T) {
		cookie, err := c.Encode(Record{SessionID: "sess-1", UserID: "user-1"})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		parts := strings.Split(cookie, ".")
		if len(parts) != 2 {
			t.Fatalf("cookie segments: expected 2, got %d", len(parts))
		}
		if len(parts[1]) != 64 {
			t.Errorf("signature length: expected 64, got %d", len(parts[1]))
		}
	})

	t.Run("is deterministic", func(t *testing.T) {
		rec := Record{SessionID: "sess-1", UserID: "user-1", Expire: "2030-01-02T15:04:05Z"}
		a, err := c.Encode(rec)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		b, err := c.Encode(rec)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if a != b {
			t.Errorf("same record encoded twice differs:\n%s\n%s", a, b)
		}
	})

	t.Run("rejects record without sessionId or userId", func(t *testing.T) {
		if _, err := c.Encode(Record{UserID: "u"}); err == nil {
			t.Error("expected error for missing sessionId")
		}
		if _, err := c.Encode(Record{SessionID: "s"}); err == nil {
			t.Error("expected error for missing userId")
		}
	})

	t.Run("payload contains no padding characters", func(t *testing.T) {
		cookie, err := c.Encode(Record{SessionID: "s", UserID: "u"})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if strings.ContainsAny(cookie, "=+/") {
			t.Errorf("cookie uses non-base64url characters: %s", cookie)
		}
	})
}

func TestDecode(t *testing.T) {
	c := mustCodec(t, testSecret)

	t.Run("round-trips every field", func(t *testing.T) {
		want := Record{SessionID: "sess-42", UserID: "user-42", Expire: "2031-06-01T00:00:00Z"}
		cookie, err := c.Encode(want)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got := c.Decode(cookie)
		if got == nil {
			t.Fatal("Decode returned nil for a valid cookie")
		}
		if *got != want {
			t.Errorf("round-trip mismatch: got %+v, want %+v", *got, want)
		}
	})

	t.Run("round-trips record without expire", func(t *testing.T) {
		want := Record{SessionID: "sess-7", UserID: "user-7"}
		cookie, err := c.Encode(want)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got := c.Decode(cookie)
		if got == nil || *got != want {
			t.Errorf("round-trip mismatch: got %+v, want %+v", got, want)
		}
	})

	t.Run("rejects every single-character signature mutation", func(t *testing.T) {
		cookie, err := c.Encode(Record{SessionID: "sess-1", UserID: "user-1"})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		dot := strings.IndexByte(cookie, '.')
		for i := dot + 1; i < len(cookie); i++ {
			mutated := []byte(cookie)
			if mutated[i] == 'a' {
				mutated[i] = 'b'
			} else {
				mutated[i] = 'a'
			}
			if c.Decode(string(mutated)) != nil {
				t.Fatalf("Decode accepted cookie with signature byte %d flipped", i-dot-1)
			}
		}
	})

	t.Run("rejects tampered payload", func(t *testing.T) {
		cookie, err := c.Encode(Record{SessionID: "sess-1", UserID: "user-1"})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if c.Decode("x"+cookie[1:]) != nil {
			t.Error("Decode accepted cookie with mutated payload")
		}
	})

	t.Run("rejects cookie signed with a different secret", func(t *testing.T) {
		other := mustCodec(t, "a-completely-different-secret-key")
		cookie, err := other.Encode(Record{SessionID: "s", UserID: "u"})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if c.Decode(cookie) != nil {
			t.Error("Decode accepted cookie signed under a different secret")
		}
	})

	t.Run("rejects empty value and garbage", func(t *testing.T) {
		for _, v := range []string{"", ".", "a.", ".b", "not-json", "e30.deadbeef"} {
			if c.Decode(v) != nil {
				t.Errorf("Decode accepted %q", v)
			}
		}
	})

	t.Run("signed payload missing userId decodes to nil", func(t *testing.T) {
		// Hand-build a correctly signed cookie around an incomplete record.
		data, _ := json.Marshal(map[string]string{"sessionId": "s"})
		payload := base64.RawURLEncoding.EncodeToString(data)
		cookie := payload + "." + c.signer.Sign(payload)
		if c.Decode(cookie) != nil {
			t.Error("Decode accepted a signed record without userId")
		}
	})

	t.Run("accepts legacy bare JSON cookie", func(t *testing.T) {
		got := c.Decode(`{"sessionId":"legacy-s","userId":"legacy-u"}`)
		if got == nil {
			t.Fatal("Decode rejected a legacy JSON cookie")
		}
		if got.SessionID != "legacy-s" || got.UserID != "legacy-u" {
			t.Errorf("legacy decode mismatch: %+v", got)
		}
	})

	t.Run("legacy JSON missing fields decodes to nil", func(t *testing.T) {
		if c.Decode(`{"sessionId":"only"}`) != nil {
			t.Error("Decode accepted legacy cookie without userId")
		}
	})

	t.Run("legacy-only codec still reads bare JSON", func(t *testing.T) {
		legacy := mustCodec(t, "")
		got := legacy.Decode(`{"sessionId":"s","userId":"u"}`)
		if got == nil {
			t.Error("legacy-only codec rejected a bare JSON cookie")
		}
	})

	t.Run("legacy-only codec cannot validate a signed cookie", func(t *testing.T) {
		cookie, err := c.Encode(Record{SessionID: "s", UserID: "u"})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		legacy := mustCodec(t, "")
		// The signed value is not valid JSON so the legacy path rejects it.
		if legacy.Decode(cookie) != nil {
			t.Error("legacy-only codec accepted a signed cookie it cannot verify")
		}
	})
}

func TestIsExpired(t *testing.T) {
	t.Run("nil record is not expired", func(t *testing.T) {
		if IsExpired(nil) {
			t.Error("nil record reported expired")
		}
	})

	t.Run("missing expire is not expired", func(t *testing.T) {
		if IsExpired(&Record{SessionID: "s", UserID: "u"}) {
			t.Error("record without expire reported expired")
		}
	})

	t.Run("malformed expire is not expired", func(t *testing.T) {
		if IsExpired(&Record{SessionID: "s", UserID: "u", Expire: "not-a-date"}) {
			t.Error("malformed expire reported expired")
		}
	})

	t.Run("one second in the past is expired", func(t *testing.T) {
		past := time.Now().Add(-1 * time.Second).Format(time.RFC3339)
		if !IsExpired(&Record{SessionID: "s", UserID: "u", Expire: past}) {
			t.Error("past expire not reported expired")
		}
	})

	t.Run("one second in the future is not expired", func(t *testing.T) {
		future := time.Now().Add(1 * time.Second).Format(time.RFC3339)
		if IsExpired(&Record{SessionID: "s", UserID: "u", Expire: future}) {
			t.Error("future expire reported expired")
		}
	})
}
