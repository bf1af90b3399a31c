// stores.go
//
// Shared mock implementations of the auth and api collaborator interfaces.
// Imported by test files across packages to avoid duplicate mock definitions.
package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dernekpanel/kapi/internal/store"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// MockStore implements the database interfaces of internal/auth and
// internal/api for tests.
//
// Always stateful: Users is a map keyed by id, like a real store.
// Use *Err fields to inject errors for specific operations.
type MockStore struct {
	// Error injection; zero value means no error.
	GetUserErr           error
	GetUserByEmailErr    error
	UpdateLastLoginErr   error
	ListUsersErr         error
	ListBeneficiariesErr error
	ListDonationsErr     error
	ListTasksErr         error

	Users         map[uuid.UUID]*store.User
	Beneficiaries []store.Beneficiary
	Donations     []store.Donation
	Tasks         []store.Task

	LastLoginCalls []uuid.UUID

	mu sync.Mutex
}

// NewMockStore returns a MockStore seeded with the given users.
func NewMockStore(users ...*store.User) *MockStore {
	ms := &MockStore{Users: make(map[uuid.UUID]*store.User)}
	for _, u := range users {
		ms.Users[u.ID] = u
	}
	return ms
}

func (m *MockStore) GetUser(_ context.Context, id uuid.UUID) (*store.User, error) {
	if m.GetUserErr != nil {
		return nil, m.GetUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

func (m *MockStore) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	if m.GetUserByEmailErr != nil {
		return nil, m.GetUserByEmailErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *MockStore) UpdateLastLogin(_ context.Context, id uuid.UUID) error {
	if m.UpdateLastLoginErr != nil {
		return m.UpdateLastLoginErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastLoginCalls = append(m.LastLoginCalls, id)
	return nil
}

func (m *MockStore) ListUsers(_ context.Context) ([]store.User, error) {
	if m.ListUsersErr != nil {
		return nil, m.ListUsersErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.User, 0, len(m.Users))
	for _, u := range m.Users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *MockStore) ListBeneficiaries(_ context.Context, limit int) ([]store.Beneficiary, error) {
	if m.ListBeneficiariesErr != nil {
		return nil, m.ListBeneficiariesErr
	}
	return capRows(m.Beneficiaries, limit), nil
}

func (m *MockStore) ListDonations(_ context.Context, limit int) ([]store.Donation, error) {
	if m.ListDonationsErr != nil {
		return nil, m.ListDonationsErr
	}
	return capRows(m.Donations, limit), nil
}

func (m *MockStore) ListTasks(_ context.Context, limit int) ([]store.Task, error) {
	if m.ListTasksErr != nil {
		return nil, m.ListTasksErr
	}
	return capRows(m.Tasks, limit), nil
}

func capRows[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

// MockCache implements the user-cache interfaces of internal/auth and
// internal/api. Misses return store.ErrCacheMiss like the Redis-backed cache.
type MockCache struct {
	GetUserErr    error
	SetUserErr    error
	DeleteUserErr error

	Users map[uuid.UUID]store.CachedUser

	SetCalls    int
	DeleteCalls int

	mu sync.Mutex
}

func NewMockCache() *MockCache {
	return &MockCache{Users: make(map[uuid.UUID]store.CachedUser)}
}

func (m *MockCache) GetUser(_ context.Context, id uuid.UUID) (*store.CachedUser, error) {
	if m.GetUserErr != nil {
		return nil, m.GetUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return nil, store.ErrCacheMiss
	}
	return &u, nil
}

func (m *MockCache) SetUser(_ context.Context, user store.CachedUser, _ time.Duration) error {
	if m.SetUserErr != nil {
		return m.SetUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users[user.ID] = user
	m.SetCalls++
	return nil
}

func (m *MockCache) DeleteUser(_ context.Context, id uuid.UUID) error {
	if m.DeleteUserErr != nil {
		return m.DeleteUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Users, id)
	m.DeleteCalls++
	return nil
}

// MockRateLimiter implements auth.RateLimiter. AllowErr is returned from every
// Allow call; set it to store.ErrRateLimitExceeded to simulate a lockout.
type MockRateLimiter struct {
	AllowErr error
	ResetErr error

	AllowCalls []string
	ResetCalls []string

	mu sync.Mutex
}

func (m *MockRateLimiter) Allow(_ context.Context, key string, _ store.RateLimit) error {
	m.mu.Lock()
	m.AllowCalls = append(m.AllowCalls, key)
	m.mu.Unlock()
	return m.AllowErr
}

func (m *MockRateLimiter) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	m.ResetCalls = append(m.ResetCalls, key)
	m.mu.Unlock()
	return m.ResetErr
}
