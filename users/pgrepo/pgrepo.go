// Package pgrepo keeps identities and their security stamps in PostgreSQL,
// next to the refresh_tokens table.
package pgrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-token-service/users"
)

var _ users.UserRepo = (*Repo)(nil)

const selectColumns = `id, email, username, display_name, first_name, last_name, roles, blocked, security_stamp`

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL DEFAULT '',
	username       TEXT NOT NULL DEFAULT '',
	display_name   TEXT NOT NULL DEFAULT '',
	first_name     TEXT NOT NULL DEFAULT '',
	last_name      TEXT NOT NULL DEFAULT '',
	roles          TEXT[] NOT NULL DEFAULT '{}',
	blocked        BOOLEAN NOT NULL DEFAULT FALSE,
	security_stamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_users_email ON users (email);
`

// Repo implements users.UserRepo on a pgx connection pool
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a Postgres-backed user repo
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// EnsureSchema creates the users table when it does not exist
func (r *Repo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("Repo.EnsureSchema: %w", err)
	}
	return nil
}

// Upsert writes every profile column. An empty stamp keeps the stored one, and
// a new row without a stamp gets a fresh one.
func (r *Repo) Upsert(ctx context.Context, user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	fresh := users.NewSecurityStamp()

	err := r.pool.QueryRow(ctx, `
INSERT INTO users (id, email, username, display_name, first_name, last_name, roles, blocked, security_stamp)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE(NULLIF($9, ''), $10))
ON CONFLICT (id) DO UPDATE SET
	email = EXCLUDED.email,
	username = EXCLUDED.username,
	display_name = EXCLUDED.display_name,
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	roles = EXCLUDED.roles,
	blocked = EXCLUDED.blocked,
	security_stamp = COALESCE(NULLIF($9, ''), users.security_stamp)
RETURNING security_stamp`,
		user.ID, user.Email, user.Username, user.DisplayName, user.FirstName, user.LastName,
		user.RoleNames(), user.Blocked, user.SecurityStamp, fresh,
	).Scan(&user.SecurityStamp)
	if err != nil {
		return fmt.Errorf("Repo.Upsert: %w", err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Repo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM users WHERE email = $1 ORDER BY id LIMIT 1`, email)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*users.User, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM users WHERE id = $1`, id)
}

func (r *Repo) UpdateSecurityStamp(ctx context.Context, id string, stamp string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET security_stamp = $2 WHERE id = $1`, id, stamp)
	if err != nil {
		return fmt.Errorf("Repo.UpdateSecurityStamp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *Repo) getOne(ctx context.Context, query string, arg string) (*users.User, error) {
	var (
		u     users.User
		roles []string
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.DisplayName,
		&u.FirstName,
		&u.LastName,
		&roles,
		&u.Blocked,
		&u.SecurityStamp,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Repo.getOne: %w", err)
	}
	for _, role := range roles {
		u.Roles = append(u.Roles, users.RoleType(role))
	}
	return &u, nil
}
