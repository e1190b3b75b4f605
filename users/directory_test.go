package users_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-token-service/users"
	fakeuserrepo "github.com/jrsteele09/go-token-service/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	repo := fakeuserrepo.NewFakeUserRepo()
	dir := users.NewDirectory(repo)

	require.NoError(t, repo.Upsert(ctx, &users.User{
		ID:        "user-1",
		Email:     "john.doe@example.com",
		FirstName: "John",
		LastName:  "Doe",
		Roles:     []users.RoleType{users.RoleUser, users.RoleAdmin},
	}))

	t.Run("find by id", func(t *testing.T) {
		u, err := dir.FindByID(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, "john.doe@example.com", u.Email)
		require.Equal(t, "John Doe", u.Name())
		require.NotEmpty(t, u.SecurityStamp)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := dir.FindByID(ctx, "nobody")
		require.ErrorIs(t, err, users.ErrNotFound)
	})

	t.Run("roles", func(t *testing.T) {
		u, err := dir.FindByID(ctx, "user-1")
		require.NoError(t, err)
		roles, err := dir.GetRoles(ctx, u)
		require.NoError(t, err)
		require.Equal(t, []string{"user", "admin"}, roles)
	})

	t.Run("stamp change is visible through stale user", func(t *testing.T) {
		u, err := dir.FindByID(ctx, "user-1")
		require.NoError(t, err)
		before := u.SecurityStamp

		after, err := dir.ChangeSecurityStamp(ctx, "user-1")
		require.NoError(t, err)
		require.NotEqual(t, before, after)

		current, err := dir.GetSecurityStamp(ctx, u)
		require.NoError(t, err)
		require.Equal(t, after, current)
	})

	t.Run("save keeps stamp", func(t *testing.T) {
		u, err := dir.FindByID(ctx, "user-1")
		require.NoError(t, err)
		stamp := u.SecurityStamp

		u.DisplayName = "Johnny"
		u.SecurityStamp = ""
		require.NoError(t, dir.Save(ctx, u))
		require.Equal(t, stamp, u.SecurityStamp)

		saved, err := dir.FindByID(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, "Johnny", saved.Name())
		require.Equal(t, stamp, saved.SecurityStamp)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, dir.Save(ctx, &users.User{ID: "user-2", Email: "two@example.com"}))
		require.NoError(t, dir.Remove(ctx, "user-2"))
		_, err := dir.FindByID(ctx, "user-2")
		require.ErrorIs(t, err, users.ErrNotFound)
		require.ErrorIs(t, dir.Remove(ctx, "user-2"), users.ErrNotFound)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := dir.FindByID(cctx, "user-1")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestUser_Name(t *testing.T) {
	require.Equal(t, "JD", (&users.User{DisplayName: "JD", FirstName: "John"}).Name())
	require.Equal(t, "John", (&users.User{FirstName: "John"}).Name())
	require.Equal(t, "johnd", (&users.User{Username: "johnd"}).Name())
}
