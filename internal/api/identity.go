// Package api holds the protected module handlers that run behind the gate.
// The gate only proves authentication; each handler here loads the user record
// (Redis cache first, Postgres on miss), resolves effective permissions, and
// authorizes the specific action itself.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dernekpanel/kapi/internal/gate"
	"github.com/dernekpanel/kapi/internal/permission"
	"github.com/dernekpanel/kapi/internal/store"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// UserStore is the database side of identity loading.
// Satisfied by *store.PostgresStore.
type UserStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (*store.User, error)
}

// UserCache is the Redis side of identity loading.
// Satisfied by *store.RedisStore.
type UserCache interface {
	GetUser(ctx context.Context, id uuid.UUID) (*store.CachedUser, error)
	SetUser(ctx context.Context, user store.CachedUser, ttl time.Duration) error
}

// identityCacheTTL bounds staleness of cached authorization data.
const identityCacheTTL = 5 * time.Minute

// ErrIdentityNotFound means the forwarded user id resolves to no active user.
var ErrIdentityNotFound = errors.New("api: identity not found")

// Identity is the resolved caller: user record fields plus effective
// permissions (explicit grants, widened for privileged roles).
type Identity struct {
	UserID      uuid.UUID
	Email       string
	Name        string
	Role        string
	Permissions []string
}

// Has reports whether the caller holds the given permission.
func (id *Identity) Has(perm string) bool {
	return permission.Has(id.Permissions, perm)
}

// HasAny reports whether the caller holds at least one of the given permissions.
func (id *Identity) HasAny(perms []string) bool {
	return permission.HasAny(id.Permissions, perms)
}

// IdentityLoader resolves the gate's forwarded x-user-id header into an
// Identity. Cache-aside: Redis first, Postgres on miss, repopulate after.
type IdentityLoader struct {
	PS UserStore
	RS UserCache
}

// FromRequest resolves the caller identity from the forwarded headers.
// Returns ErrIdentityNotFound for absent, malformed, unknown, or inactive
// users; any other error is infrastructure.
func (l *IdentityLoader) FromRequest(r *http.Request) (*Identity, error) {
	raw := r.Header.Get(gate.HeaderUserID)
	if raw == "" {
		return nil, ErrIdentityNotFound
	}
	userID, err := uuid.FromString(raw)
	if err != nil {
		gate.LogWarn(r, "forwarded user id is not a uuid", "user_id", raw)
		return nil, ErrIdentityNotFound
	}
	return l.Load(r.Context(), userID)
}

// Load resolves a user id into an Identity.
func (l *IdentityLoader) Load(ctx context.Context, userID uuid.UUID) (*Identity, error) {
	if cached, err := l.RS.GetUser(ctx, userID); err == nil {
		if !cached.IsActive {
			return nil, ErrIdentityNotFound
		}
		return &Identity{
			UserID:      cached.ID,
			Email:       cached.Email,
			Name:        cached.Name,
			Role:        cached.Role,
			Permissions: permission.Effective(cached.Role, cached.Permissions),
		}, nil
	} else if !errors.Is(err, store.ErrCacheMiss) {
		// Redis down is not a reason to fail the request; fall through to
		// Postgres and skip the repopulate.
		user, dbErr := l.loadFromDB(ctx, userID)
		if dbErr != nil {
			return nil, dbErr
		}
		return identityFromUser(user), nil
	}

	user, err := l.loadFromDB(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Repopulate best-effort with the explicit grants as stored; a failed
	// write just means the next request misses again.
	_ = l.RS.SetUser(ctx, store.CachedUser{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        user.Role,
		Permissions: user.Permissions,
		IsActive:    user.IsActive,
	}, identityCacheTTL)

	return identityFromUser(user), nil
}

func (l *IdentityLoader) loadFromDB(ctx context.Context, userID uuid.UUID) (*store.User, error) {
	user, err := l.PS.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrIdentityNotFound
	}
	return user, nil
}

func identityFromUser(u *store.User) *Identity {
	return &Identity{
		UserID:      u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        u.Role,
		Permissions: permission.Effective(u.Role, u.Permissions),
	}
}
