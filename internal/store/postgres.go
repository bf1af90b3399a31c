// Package store handles all database and cache interactions.
//
// postgres.go -- pgxpool connection setup and queries.
// Creates a connection pool at startup, shared across all handlers.
// All queries use parameterized statements (no string concatenation).
package store

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore wraps the pgx connection pool used by all handlers.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates and verifies a connection pool to PostgreSQL.
// Call once at startup from main.go; the returned store is safe for concurrent use.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	// Ping db to make sure connection works
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool}, nil
}

// Close shuts down the connection pool and releases all resources.
// Call via defer in main.go after creating the store.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

const userColumns = `id, email, name, role, permissions, is_active, password_hash, last_login_at, created_at, updated_at`

// scanUser reads one users row into a User.
func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Permissions, &u.IsActive,
		&u.PasswordHash, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a user by id.
// Returns pgx.ErrNoRows if no such user exists.
func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

// GetUserByEmail fetches a user by email for login verification.
// Returns pgx.ErrNoRows if no such user exists.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email))
}

// UpdateLastLogin stamps last_login_at = NOW() for the user.
func (s *PostgresStore) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1", id)
	return err
}

// ListUsers returns all users ordered by name, without password hashes.
// Consumed by the user-management module (requires users:manage).
func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, email, name, role, permissions, is_active, last_login_at, created_at, updated_at FROM users ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Permissions,
			&u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListBeneficiaries returns the most recent beneficiaries, newest first.
func (s *PostgresStore) ListBeneficiaries(ctx context.Context, limit int) ([]Beneficiary, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, name, status, created_at, updated_at FROM beneficiaries ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Beneficiary
	for rows.Next() {
		var b Beneficiary
		if err := rows.Scan(&b.ID, &b.Name, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListDonations returns the most recent donations, newest first.
func (s *PostgresStore) ListDonations(ctx context.Context, limit int) ([]Donation, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, donor_name, amount, currency, created_at FROM donations ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Donation
	for rows.Next() {
		var d Donation
		if err := rows.Scan(&d.ID, &d.DonorName, &d.Amount, &d.Currency, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListTasks returns open tasks ordered by due date, unscheduled last.
func (s *PostgresStore) ListTasks(ctx context.Context, limit int) ([]Task, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, title, status, due_at, created_at FROM tasks ORDER BY due_at ASC NULLS LAST LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Status, &t.DueAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
