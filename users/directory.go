package users

import (
	"context"
	"fmt"
)

// Directory exposes a UserRepo as the identity store consumed by the
// refresh token lifecycle manager, and as the admin surface that maintains it.
type Directory struct {
	repo UserRepo
}

// NewDirectory creates a Directory backed by repo
func NewDirectory(repo UserRepo) *Directory {
	return &Directory{repo: repo}
}

// FindByID returns the user or ErrNotFound.
func (d *Directory) FindByID(ctx context.Context, id string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Directory.FindByID: %w", err)
	}
	return u, nil
}

// GetSecurityStamp returns the user's current stamp as stored in the repo, not the
// possibly stale copy held by u.
func (d *Directory) GetSecurityStamp(ctx context.Context, u *User) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	current, err := d.repo.GetByID(ctx, u.ID)
	if err != nil {
		return "", fmt.Errorf("Directory.GetSecurityStamp: %w", err)
	}
	return current.SecurityStamp, nil
}

func (d *Directory) GetRoles(ctx context.Context, u *User) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	current, err := d.repo.GetByID(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("Directory.GetRoles: %w", err)
	}
	return current.RoleNames(), nil
}

// Save creates or updates u. The stored security stamp is kept unless u
// carries one.
func (d *Directory) Save(ctx context.Context, u *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.repo.Upsert(ctx, u); err != nil {
		return fmt.Errorf("Directory.Save: %w", err)
	}
	return nil
}

// Remove deletes the user. Their refresh tokens fail at the next rotation.
func (d *Directory) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("Directory.Remove: %w", err)
	}
	return nil
}

// ChangeSecurityStamp rotates the user's stamp, invalidating every refresh
// token issued before the change at its next rotation.
func (d *Directory) ChangeSecurityStamp(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stamp := NewSecurityStamp()
	if err := d.repo.UpdateSecurityStamp(ctx, id, stamp); err != nil {
		return "", fmt.Errorf("Directory.ChangeSecurityStamp: %w", err)
	}
	return stamp, nil
}
