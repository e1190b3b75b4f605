package refreshrepofake

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jrsteele09/go-token-service/token/refresh"
)

var _ refresh.Store = (*FakeRefreshTokenStore)(nil)

// ErrTxDone is returned by operations on a committed or rolled back transaction
var ErrTxDone = errors.New("transaction already finished")

// FakeRefreshTokenStore keeps refresh records in memory. Transactions buffer
// their writes and validate them under one lock at commit.
type FakeRefreshTokenStore struct {
	records map[string]*refresh.Record // digest to record
	lock    sync.RWMutex
}

func NewFakeRefreshTokenStore() *FakeRefreshTokenStore {
	return &FakeRefreshTokenStore{
		records: make(map[string]*refresh.Record),
	}
}

func (s *FakeRefreshTokenStore) Begin(ctx context.Context) (refresh.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &fakeTx{
		store:  s,
		writes: make(map[string]*pendingWrite),
	}, nil
}

// Put stores rec as-is, bypassing version checks. Used to seed test state.
func (s *FakeRefreshTokenStore) Put(rec *refresh.Record) {
	s.lock.Lock()
	defer s.lock.Unlock()

	stored := rec.Clone()
	if stored.Version == 0 {
		stored.Version = 1
	}
	s.records[stored.TokenDigest] = stored
}

// Get returns a copy of the committed record for digest
func (s *FakeRefreshTokenStore) Get(digest string) (*refresh.Record, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	rec, ok := s.records[digest]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// List returns copies of committed records ordered by issue time
func (s *FakeRefreshTokenStore) List() []*refresh.Record {
	s.lock.RLock()
	defer s.lock.RUnlock()

	out := make([]*refresh.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].IssuedAt.Before(out[j].IssuedAt)
	})
	return out
}

type pendingWrite struct {
	rec             *refresh.Record
	insert          bool
	expectedVersion int64
}

type fakeTx struct {
	store  *FakeRefreshTokenStore
	writes map[string]*pendingWrite // digest to buffered write
	order  []string
	done   bool
}

func (tx *fakeTx) GetByDigest(ctx context.Context, digest string) (*refresh.Record, error) {
	if err := tx.check(ctx); err != nil {
		return nil, err
	}
	if w, ok := tx.writes[digest]; ok {
		return w.rec.Clone(), nil
	}
	rec, ok := tx.store.Get(digest)
	if !ok {
		return nil, refresh.ErrRecordNotFound
	}
	return rec, nil
}

func (tx *fakeTx) Insert(ctx context.Context, rec *refresh.Record) error {
	if err := tx.check(ctx); err != nil {
		return err
	}
	if _, ok := tx.writes[rec.TokenDigest]; ok {
		return refresh.ErrDuplicateDigest
	}
	if _, ok := tx.store.Get(rec.TokenDigest); ok {
		return refresh.ErrDuplicateDigest
	}

	rec.Version = 1
	tx.writes[rec.TokenDigest] = &pendingWrite{rec: rec.Clone(), insert: true}
	tx.order = append(tx.order, rec.TokenDigest)
	return nil
}

func (tx *fakeTx) Update(ctx context.Context, rec *refresh.Record, expectedVersion int64) error {
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

	stored, ok := tx.store.Get(rec.TokenDigest)
	if !ok {
		return refresh.ErrRecordNotFound
	}
	if stored.Version != expectedVersion {
		return refresh.ErrVersionMismatch
	}

	rec.Version = expectedVersion + 1
	tx.writes[rec.TokenDigest] = &pendingWrite{rec: rec.Clone(), expectedVersion: expectedVersion}
	tx.order = append(tx.order, rec.TokenDigest)
	return nil
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	if err := tx.check(ctx); err != nil {
		return err
	}
	tx.done = true

	s := tx.store
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, digest := range tx.order {
		w := tx.writes[digest]
		stored, exists := s.records[digest]
		switch {
		case w.insert && exists:
			return refresh.ErrDuplicateDigest
		case !w.insert && !exists:
			return refresh.ErrRecordNotFound
		case !w.insert && stored.Version != w.expectedVersion:
			return refresh.ErrVersionMismatch
		}
	}
	for _, digest := range tx.order {
		s.records[digest] = tx.writes[digest].rec
	}
	return nil
}

func (tx *fakeTx) Rollback(_ context.Context) error {
	tx.done = true
	tx.writes = nil
	tx.order = nil
	return nil
}

func (tx *fakeTx) check(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	return ctx.Err()
}
