// Package redisstore keeps refresh records in Redis, one JSON value per digest.
// Commits are optimistic: every touched key is WATCHed, re-validated and then
// written in a single MULTI/EXEC.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-token-service/token/refresh"
	"github.com/redis/go-redis/v9"
)

var _ refresh.Store = (*Store)(nil)

// ErrTxDone is returned by operations on a committed or rolled back transaction
var ErrTxDone = errors.New("transaction already finished")

// Store implements refresh.Store on a go-redis client
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithKeyPrefix namespaces every key written by the store
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithRetention expires records this long after their ExpiresAt. Zero keeps
// records until something else deletes them.
func WithRetention(retention time.Duration) Option {
	return func(s *Store) {
		s.retention = retention
	}
}

// WithNowFunc overrides the clock used for retention TTLs
func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Redis-backed record store
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		redis: client,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClient builds a client and validates connectivity
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (s *Store) Begin(ctx context.Context) (refresh.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &redisTx{
		store:  s,
		writes: make(map[string]*pendingWrite),
	}, nil
}

func (s *Store) key(digest string) string {
	return s.prefix + "refresh:" + digest
}

func (s *Store) ttl(rec *refresh.Record) time.Duration {
	if s.retention <= 0 {
		return 0
	}
	ttl := rec.ExpiresAt.Sub(s.now()) + s.retention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// load reads and decodes one record through c, which is either the client or a WATCH transaction.
func (s *Store) load(ctx context.Context, c getter, digest string) (*refresh.Record, error) {
	data, err := c.Get(ctx, s.key(digest)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, refresh.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decodeRecord(data)
}

type pendingWrite struct {
	rec             *refresh.Record
	insert          bool
	expectedVersion int64
}

type redisTx struct {
	store  *Store
	writes map[string]*pendingWrite // digest to buffered write
	order  []string
	done   bool
}

func (tx *redisTx) GetByDigest(ctx context.Context, digest string) (*refresh.Record, error) {
	if err := tx.check(ctx); err != nil {
		return nil, err
	}
	if w, ok := tx.writes[digest]; ok {
		return w.rec.Clone(), nil
	}
	return tx.store.load(ctx, tx.store.redis, digest)
}

func (tx *redisTx) Insert(ctx context.Context, rec *refresh.Record) error {
	if err := tx.check(ctx); err != nil {
		return err
	}
	if _, ok := tx.writes[rec.TokenDigest]; ok {
		return refresh.ErrDuplicateDigest
	}
	n, err := tx.store.redis.Exists(ctx, tx.store.key(rec.TokenDigest)).Result()
	if err != nil {
		return fmt.Errorf("redis exists: %w", err)
	}
	if n > 0 {
		return refresh.ErrDuplicateDigest
	}

	rec.Version = 1
	tx.writes[rec.TokenDigest] = &pendingWrite{rec: rec.Clone(), insert: true}
	tx.order = append(tx.order, rec.TokenDigest)
	return nil
}

func (tx *redisTx) Update(ctx context.Context, rec *refresh.Record, expectedVersion int64) error {
	if err := tx.check(ctx); err != nil {
		return err
	}

	if w, ok := tx.writes[rec.TokenDigest]; ok {
		if w.rec.Version != expectedVersion {
			return refresh.ErrVersionMismatch
		}
		rec.Version = expectedVersion + 1
		w.rec = rec.Clone()
		return nil
	}

	stored, err := tx.store.load(ctx, tx.store.redis, rec.TokenDigest)
	if err != nil {
		return err
	}
	if stored.Version != expectedVersion {
		return refresh.ErrVersionMismatch
	}

	rec.Version = expectedVersion + 1
	tx.writes[rec.TokenDigest] = &pendingWrite{rec: rec.Clone(), expectedVersion: expectedVersion}
	tx.order = append(tx.order, rec.TokenDigest)
	return nil
}

// Commit re-validates every buffered write under WATCH and applies them in one
// MULTI/EXEC. A write to any watched key in between aborts the commit.
func (tx *redisTx) Commit(ctx context.Context) error {
	if err := tx.check(ctx); err != nil {
		return err
	}
	tx.done = true
	if len(tx.order) == 0 {
		return nil
	}

	s := tx.store
	keys := make([]string, 0, len(tx.order))
	for _, digest := range tx.order {
		keys = append(keys, s.key(digest))
	}

	err := s.redis.Watch(ctx, func(rtx *redis.Tx) error {
		payloads := make([][]byte, len(tx.order))
		for i, digest := range tx.order {
			w := tx.writes[digest]
			stored, err := s.load(ctx, rtx, digest)
			switch {
			case w.insert && err == nil:
				return refresh.ErrDuplicateDigest
			case w.insert && !errors.Is(err, refresh.ErrRecordNotFound):
				return err
			case !w.insert && err != nil:
				return err
			case !w.insert && stored.Version != w.expectedVersion:
				return refresh.ErrVersionMismatch
			}

			data, err := json.Marshal(w.rec)
			if err != nil {
				return fmt.Errorf("encode refresh record: %w", err)
			}
			payloads[i] = data
		}

		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, digest := range tx.order {
				pipe.Set(ctx, keys[i], payloads[i], s.ttl(tx.writes[digest].rec))
			}
			return nil
		})
		return err
	}, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return refresh.ErrVersionMismatch
	}
	return err
}

func (tx *redisTx) Rollback(_ context.Context) error {
	tx.done = true
	tx.writes = nil
	tx.order = nil
	return nil
}

func (tx *redisTx) check(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	return ctx.Err()
}

func decodeRecord(data []byte) (*refresh.Record, error) {
	var rec refresh.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode refresh record: %w", err)
	}
	return &rec, nil
}
