// pages_test.go

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dernekpanel/kapi/internal/session"
	"github.com/dernekpanel/kapi/internal/store"
	"github.com/dernekpanel/kapi/internal/testutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newPageHandler(t *testing.T, ps *testutil.MockStore) *PageHandler {
	t.Helper()
	codec, err := session.NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return &PageHandler{
		Identity: &IdentityLoader{PS: ps, RS: testutil.NewMockCache()},
		Codec:    codec,
	}
}

func pageRequest(t *testing.T, h *PageHandler, path string, user *store.User) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, path, nil)
	if user != nil {
		value, err := h.Codec.Encode(session.Record{
			SessionID: "s-1",
			UserID:    user.ID.String(),
			Expire:    time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		r.AddCookie(&http.Cookie{Name: session.CookieName, Value: value})
	}
	return r
}

func TestPageHandler(t *testing.T) {
	t.Run("no session redirects to login with the original path", func(t *testing.T) {
		h := newPageHandler(t, testutil.NewMockStore())

		w := httptest.NewRecorder()
		h.Serve(w, pageRequest(t, h, "/bagis", nil))

		if w.Code != http.StatusFound {
			t.Fatalf("status: expected 302, got %d", w.Code)
		}
		if loc := w.Header().Get("Location"); loc != "/login?redirect=%2Fbagis" {
			t.Errorf("location: got %q", loc)
		}
	})

	t.Run("missing module permission returns Forbidden", func(t *testing.T) {
		user := newUser(t, "Personel", []string{"messages"})
		h := newPageHandler(t, testutil.NewMockStore(user))

		w := httptest.NewRecorder()
		h.Serve(w, pageRequest(t, h, "/bagis", user))

		if w.Code != http.StatusForbidden {
			t.Errorf("status: expected 403, got %d", w.Code)
		}
	})

	t.Run("granted permission serves the page", func(t *testing.T) {
		user := newUser(t, "Personel", []string{"donations"})
		h := newPageHandler(t, testutil.NewMockStore(user))

		w := httptest.NewRecorder()
		h.Serve(w, pageRequest(t, h, "/bagis", user))

		if w.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d (body %s)", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), `"page":"/bagis"`) {
			t.Errorf("body: expected page payload, got %q", w.Body.String())
		}
	})

	t.Run("sub-path rule wins over the parent", func(t *testing.T) {
		// reports permission covers /bagis/raporlar even without donations.
		user := newUser(t, "Personel", []string{"reports"})
		h := newPageHandler(t, testutil.NewMockStore(user))

		w := httptest.NewRecorder()
		h.Serve(w, pageRequest(t, h, "/bagis/raporlar", user))

		if w.Code != http.StatusOK {
			t.Errorf("status: expected 200, got %d", w.Code)
		}
	})

	t.Run("open page needs only a session", func(t *testing.T) {
		user := newUser(t, "Personel", nil)
		h := newPageHandler(t, testutil.NewMockStore(user))

		w := httptest.NewRecorder()
		h.Serve(w, pageRequest(t, h, "/genel", user))

		if w.Code != http.StatusOK {
			t.Errorf("status: expected 200, got %d", w.Code)
		}
	})

	t.Run("deleted user redirects to login", func(t *testing.T) {
		user := newUser(t, "Personel", nil)
		h := newPageHandler(t, testutil.NewMockStore())

		w := httptest.NewRecorder()
		h.Serve(w, pageRequest(t, h, "/genel", user))

		if w.Code != http.StatusFound {
			t.Errorf("status: expected 302, got %d", w.Code)
		}
	})
}
