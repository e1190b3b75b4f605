package users

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// UserRepo persists identities and their security stamps. Upsert assigns an ID
// when empty and keeps the stored stamp when the incoming one is empty, so
// re-saving a profile never logs the user out.
type UserRepo interface {
	Upsert(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	UpdateSecurityStamp(ctx context.Context, id string, stamp string) error
}
