// handlers.go -- protected module list endpoints.
//
// Each handler follows the same contract: resolve the forwarded identity,
// authorize against the module's required permission, then read from Postgres.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/dernekpanel/kapi/internal/gate"
	"github.com/dernekpanel/kapi/internal/permission"
	"github.com/dernekpanel/kapi/internal/store"
)

// defaultListLimit caps module list reads.
const defaultListLimit = 50

// forbiddenMessage is the panel-facing authorization failure text.
const forbiddenMessage = "Bu işlem için yetkiniz yok"

// ListStore is the read side for the module endpoints.
// Satisfied by *store.PostgresStore.
type ListStore interface {
	ListUsers(ctx context.Context) ([]store.User, error)
	ListBeneficiaries(ctx context.Context, limit int) ([]store.Beneficiary, error)
	ListDonations(ctx context.Context, limit int) ([]store.Donation, error)
	ListTasks(ctx context.Context, limit int) ([]store.Task, error)
}

// ModuleHandler serves the protected /api/* module endpoints.
type ModuleHandler struct {
	Identity *IdentityLoader
	PS       ListStore
}

// authorize resolves the caller and checks the required permission.
// Writes the error response and returns nil when the request must stop.
func (h *ModuleHandler) authorize(w http.ResponseWriter, r *http.Request, perm string) *Identity {
	identity, err := h.Identity.FromRequest(r)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			gate.Unauthorized(w)
			return nil
		}
		gate.InternalServerError(w, r, err)
		return nil
	}
	if !identity.Has(perm) {
		gate.LogWarn(r, "module access denied", "user_id", identity.UserID, "required", perm)
		gate.Forbidden(w, forbiddenMessage, "FORBIDDEN")
		return nil
	}
	return identity
}

type listResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// Users handles GET /api/users. Requires users:manage.
func (h *ModuleHandler) Users(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, permission.UsersManage) == nil {
		return
	}
	users, err := h.PS.ListUsers(r.Context())
	if err != nil {
		gate.InternalServerError(w, r, err)
		return
	}

	type userRow struct {
		ID          string   `json:"id"`
		Email       string   `json:"email"`
		Name        string   `json:"name"`
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
		IsActive    bool     `json:"isActive"`
	}
	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, userRow{
			ID:          u.ID.String(),
			Email:       u.Email,
			Name:        u.Name,
			Role:        u.Role,
			Permissions: permission.Normalize(u.Permissions),
			IsActive:    u.IsActive,
		})
	}
	gate.JSON(w, http.StatusOK, listResponse{true, rows})
}

// Beneficiaries handles GET /api/beneficiaries. Requires the beneficiaries module.
func (h *ModuleHandler) Beneficiaries(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, permission.Beneficiaries) == nil {
		return
	}
	rows, err := h.PS.ListBeneficiaries(r.Context(), defaultListLimit)
	if err != nil {
		gate.InternalServerError(w, r, err)
		return
	}
	gate.JSON(w, http.StatusOK, listResponse{true, rows})
}

// Donations handles GET /api/donations. Requires the donations module.
func (h *ModuleHandler) Donations(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, permission.Donations) == nil {
		return
	}
	rows, err := h.PS.ListDonations(r.Context(), defaultListLimit)
	if err != nil {
		gate.InternalServerError(w, r, err)
		return
	}
	gate.JSON(w, http.StatusOK, listResponse{true, rows})
}

// Tasks handles GET /api/tasks. Requires the workflow module.
func (h *ModuleHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, permission.Workflow) == nil {
		return
	}
	rows, err := h.PS.ListTasks(r.Context(), defaultListLimit)
	if err != nil {
		gate.InternalServerError(w, r, err)
		return
	}
	gate.JSON(w, http.StatusOK, listResponse{true, rows})
}
