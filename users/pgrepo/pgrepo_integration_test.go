package pgrepo_test

import (
	"context"
	"os"
	"testing"

	"github.com/jrsteele09/go-token-service/token/refresh/pgstore"
	"github.com/jrsteele09/go-token-service/users"
	"github.com/jrsteele09/go-token-service/users/pgrepo"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

// Integration tests run only when TOKEN_SERVICE_DATABASE_URL is set.

func newRepo(t *testing.T) *pgrepo.Repo {
	t.Helper()

	dbURL := os.Getenv("TOKEN_SERVICE_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TOKEN_SERVICE_DATABASE_URL is not set; skipping Postgres integration test")
	}

	ctx := context.Background()
	pool, err := pgstore.NewPool(ctx, dbURL, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := pgrepo.New(pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func TestPostgresRepo(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	id := "user-" + ulid.Make().String()
	email := id + "@example.com"
	u := &users.User{
		ID:        id,
		Email:     email,
		FirstName: "John",
		Roles:     []users.RoleType{users.RoleUser, users.RoleAdmin},
	}
	require.NoError(t, repo.Upsert(ctx, u))
	require.NotEmpty(t, u.SecurityStamp)
	stamp := u.SecurityStamp

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "John", got.FirstName)
	require.Equal(t, []users.RoleType{users.RoleUser, users.RoleAdmin}, got.Roles)
	require.Equal(t, stamp, got.SecurityStamp)

	byEmail, err := repo.GetByEmail(ctx, email)
	require.NoError(t, err)
	require.Equal(t, id, byEmail.ID)

	// Re-saving without a stamp keeps the stored one.
	require.NoError(t, repo.Upsert(ctx, &users.User{ID: id, Email: email, Blocked: true}))
	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.True(t, got.Blocked)
	require.Empty(t, got.Roles)
	require.Equal(t, stamp, got.SecurityStamp)

	require.NoError(t, repo.UpdateSecurityStamp(ctx, id, "rotated"))
	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "rotated", got.SecurityStamp)

	require.NoError(t, repo.Delete(ctx, id))
	_, err = repo.GetByID(ctx, id)
	require.ErrorIs(t, err, users.ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, id), users.ErrNotFound)
	require.ErrorIs(t, repo.UpdateSecurityStamp(ctx, id, "x"), users.ErrNotFound)
}
