// handlers_test.go

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dernekpanel/kapi/internal/gate"
	"github.com/dernekpanel/kapi/internal/store"
	"github.com/dernekpanel/kapi/internal/testutil"
)

func newModuleHandler(ps *testutil.MockStore) *ModuleHandler {
	return &ModuleHandler{
		Identity: &IdentityLoader{PS: ps, RS: testutil.NewMockCache()},
		PS:       ps,
	}
}

func authedRequest(path string, user *store.User) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	r.Header.Set(gate.HeaderUserID, user.ID.String())
	return r
}

func TestModuleHandlers(t *testing.T) {
	t.Run("no identity header returns Unauthorized", func(t *testing.T) {
		h := newModuleHandler(testutil.NewMockStore())

		r := httptest.NewRequest(http.MethodGet, "/api/donations", nil)
		w := httptest.NewRecorder()
		h.Donations(w, r)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status: expected 401, got %d", w.Code)
		}
	})

	t.Run("missing permission returns Forbidden", func(t *testing.T) {
		user := newUser(t, "Personel", []string{"messages"})
		h := newModuleHandler(testutil.NewMockStore(user))

		w := httptest.NewRecorder()
		h.Donations(w, authedRequest("/api/donations", user))

		if w.Code != http.StatusForbidden {
			t.Errorf("status: expected 403, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), `"success":false`) {
			t.Errorf("body: expected denial shape, got %q", w.Body.String())
		}
	})

	t.Run("granted permission returns rows", func(t *testing.T) {
		user := newUser(t, "Personel", []string{"donations"})
		ps := testutil.NewMockStore(user)
		ps.Donations = []store.Donation{{DonorName: "Bağışçı", Amount: 250, Currency: "TRY"}}
		h := newModuleHandler(ps)

		w := httptest.NewRecorder()
		h.Donations(w, authedRequest("/api/donations", user))

		if w.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d (body %s)", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), "Bağışçı") {
			t.Errorf("body: expected donation row, got %q", w.Body.String())
		}
	})

	t.Run("users requires the manage special", func(t *testing.T) {
		user := newUser(t, "Personel", []string{"donations", "beneficiaries"})
		h := newModuleHandler(testutil.NewMockStore(user))

		w := httptest.NewRecorder()
		h.Users(w, authedRequest("/api/users", user))

		if w.Code != http.StatusForbidden {
			t.Errorf("status: expected 403, got %d", w.Code)
		}
	})

	t.Run("privileged role reaches every module", func(t *testing.T) {
		user := newUser(t, "Admin", nil)
		ps := testutil.NewMockStore(user)
		h := newModuleHandler(ps)

		for name, call := range map[string]http.HandlerFunc{
			"/api/users":         h.Users,
			"/api/beneficiaries": h.Beneficiaries,
			"/api/donations":     h.Donations,
			"/api/tasks":         h.Tasks,
		} {
			w := httptest.NewRecorder()
			call(w, authedRequest(name, user))
			if w.Code != http.StatusOK {
				t.Errorf("%s: expected 200, got %d", name, w.Code)
			}
		}
	})

	t.Run("tasks requires the workflow module", func(t *testing.T) {
		user := newUser(t, "Personel", []string{"workflow"})
		ps := testutil.NewMockStore(user)
		ps.Tasks = []store.Task{{Title: "Evrak kontrolü", Status: "open"}}
		h := newModuleHandler(ps)

		w := httptest.NewRecorder()
		h.Tasks(w, authedRequest("/api/tasks", user))

		if w.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "Evrak kontrolü") {
			t.Errorf("body: expected task row, got %q", w.Body.String())
		}
	})
}
