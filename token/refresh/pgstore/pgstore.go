// Package pgstore keeps refresh records in PostgreSQL. Optimistic concurrency
// is enforced with a version column checked in every UPDATE.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-token-service/token/refresh"
)

var _ refresh.Store = (*Store)(nil)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
)

const selectColumns = `id, token_digest, subject_id, issued_at, expires_at, created_by_ip,
		revoked_at, revoked_by_ip, revocation_reason, replaced_by_digest,
		last_used_at, last_used_by_ip, security_stamp_snapshot, version`

const schema = `
CREATE TABLE IF NOT EXISTS refresh_tokens (
	id                      TEXT PRIMARY KEY,
	token_digest            TEXT NOT NULL,
	subject_id              TEXT NOT NULL,
	issued_at               TIMESTAMPTZ NOT NULL,
	expires_at              TIMESTAMPTZ NOT NULL,
	created_by_ip           TEXT NOT NULL DEFAULT '',
	revoked_at              TIMESTAMPTZ NULL,
	revoked_by_ip           TEXT NULL,
	revocation_reason       TEXT NULL,
	replaced_by_digest      TEXT NULL,
	last_used_at            TIMESTAMPTZ NULL,
	last_used_by_ip         TEXT NULL,
	security_stamp_snapshot TEXT NULL,
	version                 BIGINT NOT NULL DEFAULT 1,
	CONSTRAINT uq_refresh_tokens_token_digest UNIQUE (token_digest)
);
CREATE INDEX IF NOT EXISTS ix_refresh_tokens_subject_id ON refresh_tokens (subject_id);
`

// Store implements refresh.Store on a pgx connection pool
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Postgres-backed record store
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewPool builds a pgxpool and validates connectivity
func NewPool(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	if maxConns > 0 {
		pcfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pool.Ping: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the refresh_tokens table when it does not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("Store.EnsureSchema: %w", err)
	}
	return nil
}

// Begin starts a READ COMMITTED transaction. Rows are not locked on read; a
// concurrent writer is detected by the version predicate on UPDATE.
func (s *Store) Begin(ctx context.Context) (refresh.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("Store.Begin: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetByDigest(ctx context.Context, digest string) (*refresh.Record, error) {
	var rec refresh.Record
	err := t.tx.QueryRow(ctx, `SELECT `+selectColumns+` FROM refresh_tokens WHERE token_digest = $1`, digest).Scan(
		&rec.ID,
		&rec.TokenDigest,
		&rec.SubjectID,
		&rec.IssuedAt,
		&rec.ExpiresAt,
		&rec.CreatedByIP,
		&rec.RevokedAt,
		&rec.RevokedByIP,
		&rec.RevocationReason,
		&rec.ReplacedByDigest,
		&rec.LastUsedAt,
		&rec.LastUsedByIP,
		&rec.SecurityStampSnapshot,
		&rec.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, refresh.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pgTx.GetByDigest: %w", err)
	}
	return &rec, nil
}

func (t *pgTx) Insert(ctx context.Context, rec *refresh.Record) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO refresh_tokens (
			id, token_digest, subject_id, issued_at, expires_at, created_by_ip,
			revoked_at, revoked_by_ip, revocation_reason, replaced_by_digest,
			last_used_at, last_used_by_ip, security_stamp_snapshot, version
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, 1
		)
	`,
		rec.ID, rec.TokenDigest, rec.SubjectID, rec.IssuedAt, rec.ExpiresAt, rec.CreatedByIP,
		rec.RevokedAt, rec.RevokedByIP, rec.RevocationReason, rec.ReplacedByDigest,
		rec.LastUsedAt, rec.LastUsedByIP, rec.SecurityStampSnapshot,
	)
	if isPgCode(err, pgUniqueViolation) {
		return refresh.ErrDuplicateDigest
	}
	if err != nil {
		return fmt.Errorf("pgTx.Insert: %w", err)
	}
	rec.Version = 1
	return nil
}

func (t *pgTx) Update(ctx context.Context, rec *refresh.Record, expectedVersion int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET
			revoked_at = $3,
			revoked_by_ip = $4,
			revocation_reason = $5,
			replaced_by_digest = $6,
			last_used_at = $7,
			last_used_by_ip = $8,
			security_stamp_snapshot = $9,
			expires_at = $10,
			version = version + 1
		WHERE id = $1 AND version = $2
	`,
		rec.ID, expectedVersion,
		rec.RevokedAt, rec.RevokedByIP, rec.RevocationReason, rec.ReplacedByDigest,
		rec.LastUsedAt, rec.LastUsedByIP, rec.SecurityStampSnapshot, rec.ExpiresAt,
	)
	if isPgCode(err, pgSerializationFailure) {
		return refresh.ErrVersionMismatch
	}
	if err != nil {
		return fmt.Errorf("pgTx.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return refresh.ErrVersionMismatch
	}
	rec.Version = expectedVersion + 1
	return nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	err := t.tx.Commit(ctx)
	if isPgCode(err, pgSerializationFailure) {
		return refresh.ErrVersionMismatch
	}
	if err != nil {
		return fmt.Errorf("pgTx.Commit: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("pgTx.Rollback: %w", err)
	}
	return nil
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == code
}
