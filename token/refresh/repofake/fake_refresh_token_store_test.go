package refreshrepofake_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-service/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-token-service/token/refresh/repofake"
	"github.com/stretchr/testify/require"
)

func newRecord(digest string) *refresh.Record {
	now := time.Now().UTC()
	return &refresh.Record{
		ID:          "id-" + digest,
		TokenDigest: digest,
		SubjectID:   "user-1",
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Hour),
	}
}

func TestFakeStore_InsertCommit(t *testing.T) {
	ctx := context.Background()
	store := refreshrepofake.NewFakeRefreshTokenStore()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	rec := newRecord("d1")
	require.NoError(t, tx.Insert(ctx, rec))
	require.EqualValues(t, 1, rec.Version)

	// Visible inside the transaction, not outside until commit.
	got, err := tx.GetByDigest(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, "id-d1", got.ID)
	_, ok := store.Get("d1")
	require.False(t, ok)

	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))

	stored, ok := store.Get("d1")
	require.True(t, ok)
	require.EqualValues(t, 1, stored.Version)
}

func TestFakeStore_Rollback(t *testing.T) {
	ctx := context.Background()
	store := refreshrepofake.NewFakeRefreshTokenStore()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Insert(ctx, newRecord("d1")))
	require.NoError(t, tx.Rollback(ctx))

	_, ok := store.Get("d1")
	require.False(t, ok)
	require.ErrorIs(t, tx.Commit(ctx), refreshrepofake.ErrTxDone)
}

func TestFakeStore_NotFoundAndDuplicate(t *testing.T) {
	ctx := context.Background()
	store := refreshrepofake.NewFakeRefreshTokenStore()
	store.Put(newRecord("d1"))

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	_, err = tx.GetByDigest(ctx, "missing")
	require.ErrorIs(t, err, refresh.ErrRecordNotFound)
	require.ErrorIs(t, tx.Insert(ctx, newRecord("d1")), refresh.ErrDuplicateDigest)
}

func TestFakeStore_VersionMismatch(t *testing.T) {
	ctx := context.Background()
	store := refreshrepofake.NewFakeRefreshTokenStore()
	store.Put(newRecord("d1"))

	txA, err := store.Begin(ctx)
	require.NoError(t, err)
	txB, err := store.Begin(ctx)
	require.NoError(t, err)

	recA, err := txA.GetByDigest(ctx, "d1")
	require.NoError(t, err)
	recB, err := txB.GetByDigest(ctx, "d1")
	require.NoError(t, err)

	recA.RevocationReason = new(string)
	require.NoError(t, txA.Update(ctx, recA, 1))
	require.EqualValues(t, 2, recA.Version)
	require.NoError(t, txB.Update(ctx, recB, 1))

	require.NoError(t, txA.Commit(ctx))
	require.ErrorIs(t, txB.Commit(ctx), refresh.ErrVersionMismatch)

	// A fresh transaction with a stale version fails at Update.
	txC, err := store.Begin(ctx)
	require.NoError(t, err)
	defer txC.Rollback(ctx)
	require.ErrorIs(t, txC.Update(ctx, recB, 1), refresh.ErrVersionMismatch)

	stored, _ := store.Get("d1")
	require.EqualValues(t, 2, stored.Version)
	require.NotNil(t, stored.RevocationReason)
}

func TestFakeStore_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := refreshrepofake.NewFakeRefreshTokenStore()
	store.Put(newRecord("old"))

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	rec, err := tx.GetByDigest(ctx, "old")
	require.NoError(t, err)
	require.NoError(t, tx.Update(ctx, rec, 1))
	require.NoError(t, tx.Insert(ctx, newRecord("new")))

	// A competing writer bumps the old record first.
	store.Put(&refresh.Record{TokenDigest: "old", Version: 5})

	require.ErrorIs(t, tx.Commit(ctx), refresh.ErrVersionMismatch)
	_, ok := store.Get("new")
	require.False(t, ok)
}

func TestFakeStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := refreshrepofake.NewFakeRefreshTokenStore().Begin(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
