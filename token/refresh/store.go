package refresh

import (
	"context"
	"errors"
)

// Store errors every implementation reports
var (
	ErrRecordNotFound  = errors.New("refresh record not found")
	ErrDuplicateDigest = errors.New("refresh record digest already exists")
	ErrVersionMismatch = errors.New("refresh record version mismatch")
)

// Store persists refresh records. All reads and writes happen inside a Tx.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a scoped unit of work against a Store. Either every write made through
// it is committed or none is.
type Tx interface {
	// GetByDigest returns a copy of the record, or ErrRecordNotFound.
	GetByDigest(ctx context.Context, digest string) (*Record, error)
	// Insert stores a new record with Version 1. It fails with ErrDuplicateDigest
	// when the digest is already known.
	Insert(ctx context.Context, rec *Record) error
	// Update replaces the record when its stored version equals expectedVersion
	// and bumps rec.Version. A stale version fails with ErrVersionMismatch, either
	// here or at Commit.
	Update(ctx context.Context, rec *Record, expectedVersion int64) error
	Commit(ctx context.Context) error
	// Rollback discards the transaction. It is a no-op after Commit.
	Rollback(ctx context.Context) error
}
