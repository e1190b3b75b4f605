// Package redisrepo keeps identities in Redis alongside the refresh records,
// one JSON value per user plus an email index.
package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-service/users"
	"github.com/redis/go-redis/v9"
)

var _ users.UserRepo = (*Repo)(nil)

// maxWatchAttempts bounds retries when a concurrent writer touches the same user
const maxWatchAttempts = 5

// ErrContended is returned when every WATCH attempt lost to a concurrent writer
var ErrContended = errors.New("user update contended")

// storedUser carries the stamp, which users.User leaves out of its JSON form
type storedUser struct {
	users.User
	SecurityStamp string `json:"security_stamp"`
}

// Repo implements users.UserRepo on a go-redis client
type Repo struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a Redis-backed user repo. prefix namespaces every key, as it
// does for the refresh store.
func New(client redis.UniversalClient, prefix string) *Repo {
	return &Repo{redis: client, prefix: prefix}
}

func (r *Repo) key(id string) string {
	return r.prefix + "user:" + id
}

func (r *Repo) emailKey(email string) string {
	return r.prefix + "user-email:" + email
}

func (r *Repo) Upsert(ctx context.Context, user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	key := r.key(user.ID)

	return r.watch(ctx, func(rtx *redis.Tx) error {
		existing, err := r.load(ctx, rtx, user.ID)
		if err != nil && !errors.Is(err, users.ErrNotFound) {
			return err
		}

		stamp := user.SecurityStamp
		switch {
		case stamp != "":
		case existing != nil:
			stamp = existing.SecurityStamp
		default:
			stamp = users.NewSecurityStamp()
		}

		data, err := json.Marshal(storedUser{User: *user, SecurityStamp: stamp})
		if err != nil {
			return fmt.Errorf("encode user: %w", err)
		}

		_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if existing != nil && existing.Email != user.Email && existing.Email != "" {
				pipe.Del(ctx, r.emailKey(existing.Email))
			}
			pipe.Set(ctx, key, data, 0)
			if user.Email != "" {
				pipe.Set(ctx, r.emailKey(user.Email), user.ID, 0)
			}
			return nil
		})
		if err == nil {
			user.SecurityStamp = stamp
		}
		return err
	}, key)
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	return r.watch(ctx, func(rtx *redis.Tx) error {
		existing, err := r.load(ctx, rtx, id)
		if err != nil {
			return err
		}
		_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, r.key(id))
			if existing.Email != "" {
				pipe.Del(ctx, r.emailKey(existing.Email))
			}
			return nil
		})
		return err
	}, r.key(id))
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	id, err := r.redis.Get(ctx, r.emailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*users.User, error) {
	stored, err := r.load(ctx, r.redis, id)
	if err != nil {
		return nil, err
	}
	u := stored.User
	u.SecurityStamp = stored.SecurityStamp
	return &u, nil
}

func (r *Repo) UpdateSecurityStamp(ctx context.Context, id string, stamp string) error {
	key := r.key(id)
	return r.watch(ctx, func(rtx *redis.Tx) error {
		existing, err := r.load(ctx, rtx, id)
		if err != nil {
			return err
		}
		existing.SecurityStamp = stamp
		data, err := json.Marshal(existing)
		if err != nil {
			return fmt.Errorf("encode user: %w", err)
		}
		_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
}

// watch runs fn under WATCH, retrying when another writer changed the keys first
func (r *Repo) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		err := r.redis.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrContended
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *Repo) load(ctx context.Context, c getter, id string) (*storedUser, error) {
	data, err := c.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var stored storedUser
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &stored, nil
}
