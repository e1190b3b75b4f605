package fakeuserrepo

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-service/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	existing, ok := ur.users[user.ID]
	switch {
	case user.SecurityStamp != "":
	case ok:
		user.SecurityStamp = existing.SecurityStamp
	default:
		user.SecurityStamp = users.NewSecurityStamp()
	}
	if ok && existing.Email != user.Email {
		delete(ur.emailIds, existing.Email)
	}
	ur.users[user.ID] = copyUser(user)
	ur.emailIds[user.Email] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(_ context.Context, id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[id]
	if !ok {
		return users.ErrNotFound
	}
	delete(ur.emailIds, u.Email)
	delete(ur.users, id)
	return nil
}

func (ur *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	return copyUser(ur.users[id]), nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return copyUser(u), nil
}

func (ur *FakeUserRepo) UpdateSecurityStamp(_ context.Context, id string, stamp string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[id]
	if !ok {
		return users.ErrNotFound
	}
	u.SecurityStamp = stamp
	return nil
}

// copyUser keeps callers from mutating stored state behind the lock.
func copyUser(u *users.User) *users.User {
	c := *u
	c.Roles = append([]users.RoleType(nil), u.Roles...)
	return &c
}
